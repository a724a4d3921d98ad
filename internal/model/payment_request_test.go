package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionRequest(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"挂起可审批通过", RequestStatusPending, RequestStatusApproved, true},
		{"挂起可驳回", RequestStatusPending, RequestStatusRejected, true},
		{"已通过不可驳回", RequestStatusApproved, RequestStatusRejected, false},
		{"已通过不可再通过", RequestStatusApproved, RequestStatusApproved, false},
		{"已驳回不可通过", RequestStatusRejected, RequestStatusApproved, false},
		{"未知状态不可转移", "UNKNOWN", RequestStatusApproved, false},
		{"挂起不可原地转移", RequestStatusPending, RequestStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransitionRequest(tt.from, tt.to))
		})
	}
}
