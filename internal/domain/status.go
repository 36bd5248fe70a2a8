package domain

import (
	"fmt"
	"strings"
)

type TransferStatus string

const (
	TransferPending         TransferStatus = "pending"
	TransferActive          TransferStatus = "active"
	TransferCompleted       TransferStatus = "completed"
	TransferCancelled       TransferStatus = "cancelled"
	TransferPendingReturn   TransferStatus = "pending_return"
	TransferReturnCompleted TransferStatus = "return_completed"
)

type TransferKind string

const (
	KindRestock          TransferKind = "restock"
	KindSalesRun         TransferKind = "sales_run"
	KindReturn           TransferKind = "return"
	KindProductionReturn TransferKind = "production_return"
)

type BatchStatus string

const (
	BatchPendingApproval BatchStatus = "pending_approval"
	BatchInProduction    BatchStatus = "in_production"
	BatchCompleted       BatchStatus = "completed"
	BatchDeclined        BatchStatus = "declined"
	BatchCancelled       BatchStatus = "cancelled"
)

type ConfirmationStatus string

const (
	ConfirmationPending  ConfirmationStatus = "pending"
	ConfirmationApproved ConfirmationStatus = "approved"
	ConfirmationDeclined ConfirmationStatus = "declined"
)

// TransitionError is returned by StateMachine.Check for a transition the table does not allow.
type TransitionError struct {
	Machine string
	From    string
	To      string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: transition %s -> %s not allowed", e.Machine, e.From, e.To)
}

// StateMachine is an explicit table of allowed status transitions.
type StateMachine[S ~string] struct {
	name    string
	allowed map[S][]S
}

func NewStateMachine[S ~string](name string, allowed map[S][]S) StateMachine[S] {
	return StateMachine[S]{name: name, allowed: allowed}
}

func (m StateMachine[S]) Can(from, to S) bool {
	for _, next := range m.allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (m StateMachine[S]) Check(from, to S) error {
	if m.Can(from, to) {
		return nil
	}
	return &TransitionError{Machine: m.name, From: string(from), To: string(to)}
}

// Terminal reports whether no transition leaves s.
func (m StateMachine[S]) Terminal(s S) bool {
	return len(m.allowed[s]) == 0
}

var transferMachines = map[TransferKind]StateMachine[TransferStatus]{
	KindRestock: NewStateMachine("transfer/restock", map[TransferStatus][]TransferStatus{
		TransferPending: {TransferCompleted, TransferCancelled},
	}),
	KindSalesRun: NewStateMachine("transfer/sales_run", map[TransferStatus][]TransferStatus{
		TransferPending:       {TransferActive, TransferCancelled},
		TransferActive:        {TransferPendingReturn, TransferCompleted},
		TransferPendingReturn: {TransferReturnCompleted, TransferActive},
	}),
	KindReturn: NewStateMachine("transfer/return", map[TransferStatus][]TransferStatus{
		TransferPendingReturn: {TransferCompleted, TransferCancelled},
	}),
	KindProductionReturn: NewStateMachine("transfer/production_return", map[TransferStatus][]TransferStatus{
		TransferPending: {TransferCompleted, TransferCancelled},
	}),
}

// TransferMachine returns the transition table for a transfer kind.
func TransferMachine(kind TransferKind) StateMachine[TransferStatus] {
	if m, ok := transferMachines[kind]; ok {
		return m
	}
	return transferMachines[KindRestock]
}

var BatchMachine = NewStateMachine("production_batch", map[BatchStatus][]BatchStatus{
	BatchPendingApproval: {BatchInProduction, BatchDeclined, BatchCancelled},
	BatchInProduction:    {BatchCompleted},
})

// ConfirmationMachine covers payment confirmations and supply requests.
var ConfirmationMachine = NewStateMachine("confirmation", map[ConfirmationStatus][]ConfirmationStatus{
	ConfirmationPending: {ConfirmationApproved, ConfirmationDeclined},
})

// InferTransferKind classifies a transfer written without an explicit kind.
func InferTransferKind(t Transfer) TransferKind {
	switch {
	case t.OriginalRunID != "" && !t.IsSalesRun:
		return KindReturn
	case strings.HasPrefix(t.Notes, ProductionReturnNote):
		return KindProductionReturn
	case t.IsSalesRun:
		return KindSalesRun
	default:
		return KindRestock
	}
}
