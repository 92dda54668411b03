package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/companyzero/sdplayback/framefile"
	"github.com/companyzero/sdplayback/internal/assert"
)

// TestStatusCode tests that the status can be extracted from various error
// types.
func TestStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{{
		name: "nil error",
		err:  nil,
		want: 0,
	}, {
		name: "error code",
		err:  ErrDecode,
		want: -22,
	}, {
		name: "coded error",
		err:  makeCodedError(ErrStorage, nil),
		want: -5,
	}, {
		name: "coded error with inner",
		err:  makeCodedError(ErrCorruptStream, framefile.ErrInvalidMagic),
		want: -74,
	}, {
		name: "wrapped coded error",
		err:  fmt.Errorf("wrapped %w", codedErrorf(ErrSlotIdentity, nil, "slot %d", 3)),
		want: -71,
	}, {
		name: "overflow",
		err:  codedErrorf(ErrOverflow, nil, "too much"),
		want: -105,
	}, {
		name: "misc error",
		err:  errors.New("some misc error"),
		want: -1,
	}, {
		name: "canceled",
		err:  context.Canceled,
		want: -1,
	}}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := StatusCode(tc.err)
			if got != tc.want {
				t.Fatalf("unexpected status: got %d, want %d", got, tc.want)
			}
		})
	}
}

// TestCodedErrorIs tests that coded errors match both their code and their
// inner error.
func TestCodedErrorIs(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("playing: %w", makeCodedError(ErrStorage, io.ErrUnexpectedEOF))
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.BoolIs(t, errors.Is(err, ErrDecode), false)

	var ce codedError
	assert.BoolIs(t, errors.As(err, &ce), true)
	assert.DeepEqual(t, ce.code, ErrStorage)
	assert.DeepEqual(t, sessionResult(err), "storage")
}
