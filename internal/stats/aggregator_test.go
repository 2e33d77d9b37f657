package stats

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/holmes-py/JS-DeepLens/internal/notifier"
	"github.com/holmes-py/JS-DeepLens/internal/scope"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	urls []string
	err  error
}

func (f *fakeCounter) CountAll(context.Context) (int64, error) {
	return int64(len(f.urls)), f.err
}

func (f *fakeCounter) ListAllURLs(context.Context) ([]string, error) {
	return f.urls, f.err
}

type capture struct{ last any }

func (c *capture) Publish(name string, payload any) {
	if name == notifier.EventStatsUpdate {
		c.last = payload
	}
}

func TestAggregator_Refresh(t *testing.T) {
	filter := scope.NewFilter(zerolog.Nop())
	require.NoError(t, filter.Update(models.ScopeConfig{IncludePatterns: []string{`^https://a\.test/`}}))

	counter := &fakeCounter{urls: []string{"https://a.test/1.js", "https://a.test/2.js", "https://b.test/3.js"}}
	pub := &capture{}
	agg := NewAggregator(counter, filter, pub, zerolog.Nop())

	agg.RecordRequest()
	agg.RecordRequest()
	agg.RecordScriptReceived()

	s := agg.Refresh(context.Background())
	assert.Equal(t, models.Stats{RequestsSeen: 2, ScriptsReceived: 1, TotalRecords: 3, InScopeRecords: 2}, s)
	assert.Equal(t, s, pub.last)

	require.NoError(t, filter.Update(models.ScopeConfig{ExcludePatterns: []string{`\.js$`}}))
	s = agg.Refresh(context.Background())
	assert.Zero(t, s.InScopeRecords, "scope changes apply to existing records")
}

func TestAggregator_StoreFailureKeepsLastValues(t *testing.T) {
	counter := &fakeCounter{urls: []string{"https://a.test/1.js"}}
	agg := NewAggregator(counter, scope.NewFilter(zerolog.Nop()), nil, zerolog.Nop())

	first := agg.Refresh(context.Background())
	assert.EqualValues(t, 1, first.TotalRecords)
	assert.EqualValues(t, 1, first.InScopeRecords)

	counter.err = errors.New("database is locked")
	counter.urls = append(counter.urls, strings.Repeat("x", 3))
	second := agg.Refresh(context.Background())
	assert.EqualValues(t, 1, second.TotalRecords)
	assert.EqualValues(t, 1, second.InScopeRecords)
}
