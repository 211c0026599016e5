package service

import (
	"errors"
	"fmt"
	"testing"

	"go-dispatch-ws/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus_Graph(t *testing.T) {
	edges := map[Action]map[model.DispatchStatus]model.DispatchStatus{
		ActionSubmit:   {model.StatusDraft: model.StatusPendingApproval},
		ActionApprove:  {model.StatusPendingApproval: model.StatusApproved},
		ActionDispatch: {model.StatusApproved: model.StatusInTransit},
		ActionDeliver:  {model.StatusInTransit: model.StatusDelivered},
		ActionCancel: {
			model.StatusDraft:           model.StatusCancelled,
			model.StatusPendingApproval: model.StatusCancelled,
			model.StatusApproved:        model.StatusCancelled,
			model.StatusInTransit:       model.StatusCancelled,
		},
	}

	for action, from := range edges {
		for _, status := range model.AllStatuses {
			t.Run(fmt.Sprintf("%s from %s", action, status), func(t *testing.T) {
				next, err := nextStatus(status, action)
				if want, ok := from[status]; ok {
					assert.NoError(t, err)
					assert.Equal(t, want, next)
					return
				}
				assert.True(t, IsKind(err, KindInvalidState))
				assert.Equal(t, status, next)
			})
		}
	}
}

func TestAllowed_Gates(t *testing.T) {
	assert.NoError(t, allowed(model.StatusDraft, ActionEditItems))
	assert.Error(t, allowed(model.StatusPendingApproval, ActionEditItems))
	assert.NoError(t, allowed(model.StatusInTransit, ActionScan))
	assert.Error(t, allowed(model.StatusApproved, ActionScan))
	assert.NoError(t, allowed(model.StatusApproved, ActionUpdateDetails))
	assert.Error(t, allowed(model.StatusDelivered, ActionUpdateDetails))
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", DuplicateScanError("U-1"))
	assert.True(t, IsKind(err, KindDuplicateScan))
	assert.Equal(t, KindDuplicateScan, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))

	e := InvalidStateError(model.StatusDraft, ActionApprove)
	assert.Equal(t, "cannot approve a dispatch in status draft", e.Error())
	assert.Equal(t, "approved", e.Details["attempted_status"])
}
