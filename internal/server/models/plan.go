package models

import (
	"fmt"
	"path"
	"regexp"

	"github.com/dmitrijs2005/fileferry/internal/common"
)

// Protocol is the destination transfer protocol. Variants differ only in
// transport and auth handshake, not in the chunk-loop logic.
type Protocol string

const (
	ProtocolFTP  Protocol = "ftp"
	ProtocolSFTP Protocol = "sftp"
	ProtocolFTPS Protocol = "ftps"
)

// approvalRefPattern matches ServiceNow-style request identifiers,
// e.g. REQ0012345 or INC0004711.
var approvalRefPattern = regexp.MustCompile(`^(REQ|INC)[0-9]+$`)

// ValidApprovalReference reports whether ref matches the expected external
// format for an approval reference.
func ValidApprovalReference(ref string) bool {
	return approvalRefPattern.MatchString(ref)
}

// Source identifies one named object in object storage.
type Source struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Destination describes the file-transfer endpoint the object is delivered to.
type Destination struct {
	Protocol   Protocol `json:"protocol"`
	Host       string   `json:"host"`
	Port       int      `json:"port"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	RemotePath string   `json:"remote_path"`
	// RemoteFileName overrides the destination file name; defaults to the
	// base name of the source key.
	RemoteFileName string `json:"remote_file_name,omitempty"`
}

// Addr returns the host:port dial address, applying the protocol's default
// port when none is set.
func (d *Destination) Addr() string {
	port := d.Port
	if port == 0 {
		if d.Protocol == ProtocolSFTP {
			port = 22
		} else {
			port = 21
		}
	}
	return fmt.Sprintf("%s:%d", d.Host, port)
}

// RemoteFile returns the full remote path the object is written to.
func (d *Destination) RemoteFile(sourceKey string) string {
	name := d.RemoteFileName
	if name == "" {
		name = path.Base(sourceKey)
	}
	if d.RemotePath == "" {
		return name
	}
	return path.Join(d.RemotePath, name)
}

// TransferPlan is the immutable description of one requested transfer.
// Validated before any session is requested.
type TransferPlan struct {
	Source            Source      `json:"source"`
	Destination       Destination `json:"destination"`
	RequestedBy       string      `json:"requested_by"`
	ApprovalReference string      `json:"approval_reference"`
	// ExpectedChecksum optionally supplies the source object's MD5 (hex).
	// When empty, the checksum is resolved from source metadata.
	ExpectedChecksum string `json:"expected_checksum,omitempty"`
}

// Validate performs schema and protocol-field checks. Source existence is
// deliberately not checked here: that requires credentials and happens
// during planning.
func (p *TransferPlan) Validate() error {
	if p.Source.Bucket == "" || p.Source.Key == "" {
		return fmt.Errorf("%w: source bucket and key are required", common.ErrValidation)
	}
	switch p.Destination.Protocol {
	case ProtocolFTP, ProtocolSFTP, ProtocolFTPS:
	default:
		return fmt.Errorf("%w: unsupported protocol %q", common.ErrValidation, p.Destination.Protocol)
	}
	if p.Destination.Host == "" {
		return fmt.Errorf("%w: destination host is required", common.ErrValidation)
	}
	if p.Destination.Port < 0 || p.Destination.Port > 65535 {
		return fmt.Errorf("%w: destination port %d out of range", common.ErrValidation, p.Destination.Port)
	}
	if p.Destination.Username == "" {
		return fmt.Errorf("%w: destination username is required", common.ErrValidation)
	}
	if p.RequestedBy == "" {
		return fmt.Errorf("%w: requested_by is required", common.ErrValidation)
	}
	if p.ApprovalReference == "" {
		return fmt.Errorf("%w: approval reference is required", common.ErrValidation)
	}
	return nil
}
