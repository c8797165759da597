package services

import "fmt"

// Stage is the state of a user-creation transaction.
type Stage string

const (
	StagePendingIdentity  Stage = "PENDING_IDENTITY"
	StageIdentityCreated  Stage = "IDENTITY_CREATED"
	StagePendingRecord    Stage = "PENDING_RECORD"
	StageRecordPersisted  Stage = "RECORD_PERSISTED"
	StagePendingWorkspace Stage = "PENDING_WORKSPACE"
	StageWorkspaceCreated Stage = "WORKSPACE_CREATED"
	StagePendingContainer Stage = "PENDING_CONTAINER"
	StageComplete         Stage = "COMPLETE"
)

// ProvisionError reports a failed provisioning transaction.
//
// Stage is the state the transaction had reached when it failed. When
// external resources had already been created, the provisioner tries to
// remove them: Compensated tells whether that succeeded and Cleanup holds
// whatever could not be undone and needs manual attention.
type ProvisionError struct {
	Op          string
	Stage       Stage
	Cause       error
	Cleanup     error
	Compensated bool
}

func (e *ProvisionError) Error() string {
	msg := fmt.Sprintf("%s failed at %s: %v", e.Op, e.Stage, e.Cause)
	if e.Cleanup != nil {
		msg += fmt.Sprintf("; cleanup incomplete: %v", e.Cleanup)
	}
	return msg
}

func (e *ProvisionError) Unwrap() error { return e.Cause }
