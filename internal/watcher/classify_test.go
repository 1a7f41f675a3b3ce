package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentworkforce/courtwatch/internal/ledger"
	"github.com/agentworkforce/courtwatch/internal/pipeline"
	"github.com/agentworkforce/courtwatch/internal/reader"
	"github.com/agentworkforce/courtwatch/internal/workout"
)

func TestClassify(t *testing.T) {
	cases := map[string]struct {
		err  error
		want Category
	}{
		"nil":            {nil, CategoryNone},
		"nothing to do":  {pipeline.ErrNothingToDo, CategoryBenign},
		"canceled":       {context.Canceled, CategoryBenign},
		"absent":         {&reader.ReadError{Path: "x", Primary: fs.ErrNotExist}, CategoryBenign},
		"transient":      {&reader.ReadError{Path: "x", Primary: errors.New("eio"), Fallback: errors.New("exit 1")}, CategoryTransient},
		"malformed read": {&reader.ReadError{Path: "x", Primary: errors.New("eio"), Fallback: workout.ErrMalformedDocument}, CategoryMalformed},
		"malformed":      {fmt.Errorf("parse: %w", workout.ErrMalformedDocument), CategoryMalformed},
		"delivery":       {errors.Join(&pipeline.DeliveryError{WorkoutID: "a", Detail: "x"}), CategoryDelivery},
		"persistence":    {&ledger.PersistError{WorkoutID: "a", Err: errors.New("ro")}, CategoryPersistence},
		"panic":          {&PanicError{Value: "boom"}, CategoryUnexpected},
		"other":          {errors.New("???"), CategoryUnexpected},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}
