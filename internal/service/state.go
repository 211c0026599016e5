package service

import (
	"strings"

	"go-dispatch-ws/internal/model"
)

// Action names a caller intent against a dispatch.
type Action string

const (
	ActionCreate   Action = "create"
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionDispatch Action = "mark_dispatched"
	ActionDeliver  Action = "mark_delivered"
	ActionCancel   Action = "cancel"

	// Non-transition actions, still gated on status
	ActionEditItems     Action = "edit_items"
	ActionUpdateDetails Action = "update_details"
	ActionScan          Action = "scan"
)

type transition struct {
	from []model.DispatchStatus
	to   model.DispatchStatus
}

var transitions = map[Action]transition{
	ActionSubmit:   {from: []model.DispatchStatus{model.StatusDraft}, to: model.StatusPendingApproval},
	ActionApprove:  {from: []model.DispatchStatus{model.StatusPendingApproval}, to: model.StatusApproved},
	ActionDispatch: {from: []model.DispatchStatus{model.StatusApproved}, to: model.StatusInTransit},
	ActionDeliver:  {from: []model.DispatchStatus{model.StatusInTransit}, to: model.StatusDelivered},
	ActionCancel: {
		from: []model.DispatchStatus{
			model.StatusDraft,
			model.StatusPendingApproval,
			model.StatusApproved,
			model.StatusInTransit,
		},
		to: model.StatusCancelled,
	},
}

// gates lists the statuses in which a non-transition action is allowed.
var gates = map[Action][]model.DispatchStatus{
	ActionEditItems: {model.StatusDraft},
	ActionUpdateDetails: {
		model.StatusDraft,
		model.StatusPendingApproval,
		model.StatusApproved,
		model.StatusInTransit,
	},
	ActionScan: {model.StatusInTransit},
}

func (a Action) verb() string {
	return strings.ReplaceAll(string(a), "_", " ")
}

// nextStatus returns the status action leads to from current, or an
// InvalidStateError when the graph has no such edge.
func nextStatus(current model.DispatchStatus, action Action) (model.DispatchStatus, error) {
	t, ok := transitions[action]
	if !ok || !contains(t.from, current) {
		return current, InvalidStateError(current, action)
	}
	return t.to, nil
}

// allowed checks a non-transition action against the current status.
func allowed(current model.DispatchStatus, action Action) error {
	if t, ok := transitions[action]; ok {
		if contains(t.from, current) {
			return nil
		}
		return InvalidStateError(current, action)
	}
	if contains(gates[action], current) {
		return nil
	}
	return InvalidStateError(current, action)
}

func contains(list []model.DispatchStatus, s model.DispatchStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
