package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLabelBuilder(t *testing.T) {
	t.Parallel()
	got := NewLabelBuilder("exp-1").Build()

	assert.Equal(t, map[string]string{
		KeyJob:       "exp-1",
		KeyManagedBy: ManagedByReservoir,
	}, got)
}

func TestLabelBuilder_Chain(t *testing.T) {
	t.Parallel()
	got := NewLabelBuilder("exp-1").
		WithGroup("6f1c").
		WithNetwork("net-a").
		WithSite("fsn1").
		Merge(map[string]string{"team": "storage"}).
		Build()

	assert.Equal(t, "6f1c", got[KeyGroup])
	assert.Equal(t, "net-a", got[KeyNetwork])
	assert.Equal(t, "fsn1", got[KeySite])
	assert.Equal(t, "storage", got["team"])
}

func TestLabelBuilder_BuildReturnsCopy(t *testing.T) {
	t.Parallel()
	lb := NewLabelBuilder("exp-1")
	first := lb.Build()
	first[KeyJob] = "mutated"

	assert.Equal(t, "exp-1", lb.Build()[KeyJob])
}

func TestSelectorForJob(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "reservoir.io/job=exp-1", SelectorForJob("exp-1"))
}
