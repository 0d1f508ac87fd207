package orchestrator

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fileferry/internal/common"
)

// Failure taxonomy kinds surfaced to users and stored on the record.
const (
	KindValidation    = "validation error"
	KindAuthorization = "authorization error"
	KindTransient     = "transient transfer error"
	KindIntegrity     = "integrity error"
	KindCollaborator  = "collaborator error"
)

// sentinels maps each classified sentinel to its taxonomy kind. Order does
// not matter: errors wrap at most one of these.
var sentinels = []struct {
	err  error
	kind string
}{
	{common.ErrValidation, KindValidation},
	{common.ErrReplayDetected, KindAuthorization},
	{common.ErrApprovalInvalid, KindAuthorization},
	{common.ErrSessionExpired, KindAuthorization},
	{common.ErrSessionNotFound, KindAuthorization},
	{common.ErrSessionConsumed, KindAuthorization},
	{common.ErrCredentialIssuance, KindAuthorization},
	{common.ErrAuthRejected, KindAuthorization},
	{common.ErrIntegrity, KindIntegrity},
	{common.ErrChecksumUnavailable, KindIntegrity},
	{common.ErrCollaborator, KindCollaborator},
}

func kindOf(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindTransient
}

// userMessage builds the failure text stored on the record. It names the
// taxonomy kind and the attempt count and carries only the sentinel-level
// description, not raw transport errors.
func userMessage(err error, attempts int) string {
	if attempts < 1 {
		attempts = 1
	}
	desc := "transfer failed"
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			desc = s.err.Error()
			break
		}
	}
	return fmt.Sprintf("%s: %s (attempts: %d)", kindOf(err), desc, attempts)
}
