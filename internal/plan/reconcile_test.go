package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davebot/dave/internal/models"
)

func TestReconcile_ConsistentPlanIsUntouched(t *testing.T) {
	p := &models.Plan{
		FilesToEdit:     []string{"a.go"},
		FilesToCreate:   []models.NewFile{{Path: "b.go", Reasoning: "new helper"}},
		GenerationOrder: []string{"b.go", "a.go"},
	}

	got, warnings := Reconcile(p, []string{"a.go", "main.go"})

	assert.Same(t, p, got, "consistent plan should be returned as-is")
	assert.Empty(t, warnings)
}

func TestReconcile_SynthesizesMissingCreation(t *testing.T) {
	p := &models.Plan{
		FilesToEdit:     []string{"a.py"},
		GenerationOrder: []string{"a.py", "b.py"},
	}

	got, warnings := Reconcile(p, []string{"a.py"})

	require.Len(t, got.FilesToCreate, 1)
	assert.Equal(t, "b.py", got.FilesToCreate[0].Path)
	assert.NotEmpty(t, got.FilesToCreate[0].Reasoning)
	assert.Equal(t, []string{"a.py"}, got.FilesToEdit)
	assert.Equal(t, []string{"a.py", "b.py"}, got.GenerationOrder, "order must be unchanged")
	assert.NotEmpty(t, warnings)
}

func TestReconcile_DropsOrphanedPlanEntries(t *testing.T) {
	p := &models.Plan{
		FilesToEdit:     []string{"a.go", "orphan.go"},
		FilesToCreate:   []models.NewFile{{Path: "gone.go"}},
		GenerationOrder: []string{"a.go"},
	}

	got, warnings := Reconcile(p, []string{"a.go", "orphan.go"})

	assert.Equal(t, []string{"a.go"}, got.FilesToEdit)
	assert.Empty(t, got.FilesToCreate)
	assert.Len(t, warnings, 2)
}

func TestReconcile_MovesUnknownEditToCreate(t *testing.T) {
	p := &models.Plan{
		FilesToEdit:     []string{"missing.go"},
		GenerationOrder: []string{"missing.go"},
	}

	got, _ := Reconcile(p, []string{"other.go"})

	assert.Empty(t, got.FilesToEdit)
	require.Len(t, got.FilesToCreate, 1)
	assert.Equal(t, "missing.go", got.FilesToCreate[0].Path)
}

func TestReconcile_PreservesPlannerCreationDetail(t *testing.T) {
	nf := models.NewFile{Path: "new.go", Reasoning: "detailed", ContentSuggestions: []string{"func New()"}}
	p := &models.Plan{
		FilesToCreate:   []models.NewFile{nf, {Path: "dropped.go"}},
		GenerationOrder: []string{"new.go"},
	}

	got, _ := Reconcile(p, nil)

	require.Len(t, got.FilesToCreate, 1)
	assert.Equal(t, nf, got.FilesToCreate[0])
}

func TestReconcile_Idempotent(t *testing.T) {
	known := []string{"a.go", "b.go"}
	p := &models.Plan{
		FilesToEdit:     []string{"a.go", "stale.go"},
		GenerationOrder: []string{"a.go", "c.go", "b.go"},
	}

	once, _ := Reconcile(p, known)
	twice, warnings := Reconcile(once, known)

	assert.Same(t, once, twice, "second pass must be a no-op")
	assert.Empty(t, warnings)
}

func TestReconcile_InvariantHolds(t *testing.T) {
	cases := []struct {
		name  string
		plan  *models.Plan
		known []string
	}{
		{"empty order", &models.Plan{FilesToEdit: []string{"a"}}, []string{"a"}},
		{"dupes in order", &models.Plan{GenerationOrder: []string{"a", "a", "b"}}, []string{"a"}},
		{"all new", &models.Plan{GenerationOrder: []string{"x", "y"}}, nil},
		{"all known", &models.Plan{GenerationOrder: []string{"x", "y"}}, []string{"x", "y"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := Reconcile(tc.plan, tc.known)

			want := make(map[string]bool)
			for _, f := range got.GenerationOrder {
				want[f] = true
			}
			assert.Equal(t, want, got.PlannedFiles(),
				"planned set must equal generation_order set")
		})
	}
}

func TestReconcile_NilPlan(t *testing.T) {
	got, warnings := Reconcile(nil, []string{"a"})
	assert.Nil(t, got)
	assert.Empty(t, warnings)
}
