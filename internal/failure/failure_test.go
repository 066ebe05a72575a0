package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", base, ""},
		{"data", Dataf("Intro", "no anchors"), Data},
		{"wrapped transcoder", fmt.Errorf("assemble: %w", Wrap(Transcoder, "Intro", "extract", base)), Transcoder},
		{"stopped", ErrStopped, Cancelled},
		{"context", fmt.Errorf("x: %w", context.Canceled), Cancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_MessageCarriesContext(t *testing.T) {
	err := Wrap(Resource, "Climax", "concat", errors.New("disk full"))
	assert.Equal(t, `segment "Climax": concat: disk full`, err.Error())
	assert.Equal(t, "concat", StageOf(err))
	assert.ErrorContains(t, err, "disk full")
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(Data, "a", "b", nil))
}
