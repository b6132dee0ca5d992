package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// benignChecklist returns a fully answered checklist with every item in good
// condition and all documents present.
func benignChecklist() *Checklist {
	return &Checklist{
		BodyCondition:           GradeGood,
		PaintCondition:          GradeGood,
		EngineCondition:         GradeGood,
		TransmissionCondition:   GradeGood,
		BrakesCondition:         GradeGood,
		SuspensionCondition:     GradeGood,
		ElectronicsCondition:    GradeGood,
		TiresCondition:          GradeGood,
		UpholsteryCondition:     GradeGood,
		DashboardCondition:      GradeGood,
		HasRegistrationDocument: true,
		HasOwnerManual:          true,
		HasSpareKey:             true,
		HasMaintenanceRecords:   true,
	}
}

func TestChecklistScorePerfect(t *testing.T) {
	c := benignChecklist()
	assert.Equal(t, 100, c.Score())
}

func TestChecklistScoreClampedAtZero(t *testing.T) {
	c := &Checklist{
		BodyCondition:         GradePoor,
		PaintCondition:        GradePoor,
		EngineCondition:       GradePoor,
		TransmissionCondition: GradePoor,
		BrakesCondition:       GradePoor,
		SuspensionCondition:   GradePoor,
		ElectronicsCondition:  GradePoor,
		TiresCondition:        GradePoor,
		UpholsteryCondition:   GradePoor,
		DashboardCondition:    GradePoor,
		HasRust:               true,
		HasDeepScratches:      true,
		HasLargeDents:         true,
		HasHeavyBodywork:      true,
		HasOilLeak:            true,
		HasCoolantLeak:        true,
		HasWornBelts:          true,
		HasUnevenWear:         true,
		HasLowTread:           true,
		HasSeatDamage:         true,
		HasTrimDamage:         true,
		RepaintedPanels:       10,
		RepairedPanels:        10,
	}
	assert.Equal(t, 0, c.Score())
}

func TestChecklistScoreMonotonicInGrades(t *testing.T) {
	setters := []struct {
		name string
		set  func(*Checklist, Grade)
	}{
		{"body", func(c *Checklist, g Grade) { c.BodyCondition = g }},
		{"paint", func(c *Checklist, g Grade) { c.PaintCondition = g }},
		{"engine", func(c *Checklist, g Grade) { c.EngineCondition = g }},
		{"transmission", func(c *Checklist, g Grade) { c.TransmissionCondition = g }},
		{"brakes", func(c *Checklist, g Grade) { c.BrakesCondition = g }},
		{"suspension", func(c *Checklist, g Grade) { c.SuspensionCondition = g }},
		{"electronics", func(c *Checklist, g Grade) { c.ElectronicsCondition = g }},
		{"tires", func(c *Checklist, g Grade) { c.TiresCondition = g }},
		{"upholstery", func(c *Checklist, g Grade) { c.UpholsteryCondition = g }},
		{"dashboard", func(c *Checklist, g Grade) { c.DashboardCondition = g }},
	}
	ladder := []Grade{GradeExcellent, GradeGood, GradeFair, GradePoor}

	for _, s := range setters {
		t.Run(s.name, func(t *testing.T) {
			prev := 101
			for _, g := range ladder {
				c := benignChecklist()
				s.set(c, g)
				score := c.Score()
				assert.LessOrEqual(t, score, prev,
					"degrading %s to %s must not raise the score", s.name, g)
				assert.GreaterOrEqual(t, score, 0)
				assert.LessOrEqual(t, score, 100)
				prev = score
			}
		})
	}
}

func TestChecklistIsComplete(t *testing.T) {
	c := benignChecklist()
	assert.True(t, c.IsComplete())

	c.SuspensionCondition = ""
	assert.False(t, c.IsComplete())
}

func TestChecklistValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Checklist)
		wantErr bool
	}{
		{name: "benign", mutate: func(c *Checklist) {}},
		{name: "unset grades are allowed", mutate: func(c *Checklist) { c.BodyCondition = "" }},
		{name: "invalid grade", mutate: func(c *Checklist) { c.EngineCondition = "terrible" }, wantErr: true},
		{name: "repainted panels above bound", mutate: func(c *Checklist) { c.RepaintedPanels = 11 }, wantErr: true},
		{name: "negative repaired panels", mutate: func(c *Checklist) { c.RepairedPanels = -1 }, wantErr: true},
		{name: "panel counts at bound", mutate: func(c *Checklist) { c.RepaintedPanels = 10; c.RepairedPanels = 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := benignChecklist()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, EINVALID, ErrorCode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestChecklistCriticalIssues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Checklist)
		count  int
	}{
		{name: "benign checklist has none", mutate: func(c *Checklist) {}, count: 0},
		{name: "missing registration document", mutate: func(c *Checklist) { c.HasRegistrationDocument = false }, count: 1},
		{name: "poor engine", mutate: func(c *Checklist) { c.EngineCondition = GradePoor }, count: 1},
		{name: "poor brakes", mutate: func(c *Checklist) { c.BrakesCondition = GradePoor }, count: 1},
		{name: "poor transmission", mutate: func(c *Checklist) { c.TransmissionCondition = GradePoor }, count: 1},
		{name: "heavy bodywork", mutate: func(c *Checklist) { c.HasHeavyBodywork = true }, count: 1},
		{
			name:   "single leak is not critical",
			mutate: func(c *Checklist) { c.HasOilLeak = true },
			count:  0,
		},
		{
			name:   "simultaneous leaks",
			mutate: func(c *Checklist) { c.HasOilLeak = true; c.HasCoolantLeak = true },
			count:  1,
		},
		{
			name:   "five combined repairs is not critical",
			mutate: func(c *Checklist) { c.RepaintedPanels = 3; c.RepairedPanels = 2 },
			count:  0,
		},
		{
			name:   "six combined repairs",
			mutate: func(c *Checklist) { c.RepaintedPanels = 3; c.RepairedPanels = 3 },
			count:  1,
		},
		{
			name: "worn out tires need all three findings",
			mutate: func(c *Checklist) {
				c.TiresCondition = GradePoor
				c.HasLowTread = true
			},
			count: 0,
		},
		{
			name: "worn out tires",
			mutate: func(c *Checklist) {
				c.TiresCondition = GradePoor
				c.HasLowTread = true
				c.HasUnevenWear = true
			},
			count: 1,
		},
		{name: "poor electronics", mutate: func(c *Checklist) { c.ElectronicsCondition = GradePoor }, count: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := benignChecklist()
			tt.mutate(c)
			issues := c.CriticalIssues()
			assert.Len(t, issues, tt.count)
			for _, issue := range issues {
				assert.NotEmpty(t, issue)
			}
			// Pure derivation: a second call returns the same list, no
			// duplication across repeated reads.
			assert.Equal(t, issues, c.CriticalIssues())
		})
	}
}

func TestChecklistHasBlockingIssues(t *testing.T) {
	c := benignChecklist()
	assert.False(t, c.HasBlockingIssues())

	c = benignChecklist()
	c.EngineCondition = GradePoor
	assert.True(t, c.HasBlockingIssues())

	c = benignChecklist()
	c.HasRegistrationDocument = false
	assert.True(t, c.HasBlockingIssues())

	c = benignChecklist()
	c.HasHeavyBodywork = true
	assert.True(t, c.HasBlockingIssues())

	// Fair grades never block on their own.
	c = benignChecklist()
	c.BodyCondition = GradeFair
	c.TiresCondition = GradeFair
	assert.False(t, c.HasBlockingIssues())
}
