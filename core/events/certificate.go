package events

import "dqchain/core/types"

const (
	// TypeCertificateIssued is emitted when a completion certificate is minted.
	TypeCertificateIssued = "certificate.issued"
)

// CertificateIssued captures a freshly minted course-completion certificate.
type CertificateIssued struct {
	Student  [20]byte
	CourseID uint64
	TokenID  uint64
	Score    uint8
}

func (CertificateIssued) EventType() string { return TypeCertificateIssued }

func (e CertificateIssued) Event() *types.Event {
	return &types.Event{
		Type: TypeCertificateIssued,
		Attributes: map[string]string{
			"student":  bech(e.Student),
			"courseId": uintToString(e.CourseID),
			"tokenId":  uintToString(e.TokenID),
			"score":    uintToString(uint64(e.Score)),
		},
	}
}
