package certificate

import (
	"encoding/binary"
	"strings"

	"dqchain/core/events"
	"dqchain/core/state"
	nativecommon "dqchain/native/common"
)

const (
	roleAdmin  = "ROLE_ADMIN"
	roleMinter = "ROLE_MINTER"
)

type registryState interface {
	HasRole(role string, addr []byte) bool
	ModulePaused(module string) bool
	SetModulePaused(module string, paused bool) error
	NextID(name string) (uint64, error)
	CurrentID(name string) (uint64, error)
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Registry issues and serves non-transferable completion certificates. Token
// IDs are monotonic and a (student, course) pair can hold at most one.
type Registry struct {
	state   registryState
	emitter events.Emitter
}

// NewRegistry constructs a certificate registry with default dependencies.
func NewRegistry() *Registry {
	return &Registry{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(st registryState) { r.state = st }

// SetEmitter configures the event emitter used by the registry.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) emit(evt events.Event) {
	if r == nil || evt == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(evt)
}

type statePauses struct{ st registryState }

func (p statePauses) IsPaused(module string) bool { return p.st.ModulePaused(module) }

func (r *Registry) guardPaused() error {
	return nativecommon.Guard(statePauses{st: r.state}, ModuleName)
}

// Mint issues a certificate to a student for a course. The caller must hold
// ROLE_MINTER, the module must not be paused, the score must reach the passing
// bar and the student must not already hold a certificate for the course.
func (r *Registry) Mint(caller, student [20]byte, courseID uint64, courseName string, score uint8, metadataURI string, now int64) (*Certificate, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	if !r.state.HasRole(roleMinter, caller[:]) {
		return nil, ErrNotAuthorized
	}
	if err := r.guardPaused(); err != nil {
		return nil, err
	}
	if score < MinPassingScore {
		return nil, ErrScoreTooLow
	}
	lookupKey := state.CertificateLookupKey(student[:], courseID)
	var existing uint64
	ok, err := r.state.KVGet(lookupKey, &existing)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrAlreadyIssued
	}
	tokenID, err := r.state.NextID(tokenSeq)
	if err != nil {
		return nil, err
	}
	issuedAt := uint64(0)
	if now > 0 {
		issuedAt = uint64(now)
	}
	cert := &Certificate{
		TokenID:     tokenID,
		Student:     student,
		CourseID:    courseID,
		CourseName:  strings.TrimSpace(courseName),
		Score:       score,
		MetadataURI: strings.TrimSpace(metadataURI),
		IssuedAt:    issuedAt,
	}
	if err := r.state.KVPut(state.CertificateKey(tokenID), cert); err != nil {
		return nil, err
	}
	if err := r.state.KVPut(lookupKey, tokenID); err != nil {
		return nil, err
	}
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], tokenID)
	if err := r.state.KVAppend(state.CertificateHolderKey(student[:]), idBytes[:]); err != nil {
		return nil, err
	}
	r.emit(events.CertificateIssued{
		Student:  student,
		CourseID: courseID,
		TokenID:  tokenID,
		Score:    score,
	})
	return cert.Clone(), nil
}

// Verify reports whether a student holds a certificate for a course.
func (r *Registry) Verify(student [20]byte, courseID uint64) (bool, error) {
	if r == nil || r.state == nil {
		return false, ErrNilState
	}
	return r.state.KVGet(state.CertificateLookupKey(student[:], courseID), nil)
}

// Get loads a certificate by token ID.
func (r *Registry) Get(tokenID uint64) (*Certificate, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	cert := new(Certificate)
	ok, err := r.state.KVGet(state.CertificateKey(tokenID), cert)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return cert, nil
}

// TokenURI returns the metadata URI attached to a certificate.
func (r *Registry) TokenURI(tokenID uint64) (string, error) {
	cert, err := r.Get(tokenID)
	if err != nil {
		return "", err
	}
	return cert.MetadataURI, nil
}

// HolderTokens lists the token IDs held by a student in issuance order.
func (r *Registry) HolderTokens(student [20]byte) ([]uint64, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	var raw [][]byte
	if err := r.state.KVGetList(state.CertificateHolderKey(student[:]), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			continue
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids, nil
}

// TotalIssued reports how many certificates have ever been minted.
func (r *Registry) TotalIssued() (uint64, error) {
	if r == nil || r.state == nil {
		return 0, ErrNilState
	}
	return r.state.CurrentID(tokenSeq)
}

// Pause blocks minting. Admin only.
func (r *Registry) Pause(caller [20]byte) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if !r.state.HasRole(roleAdmin, caller[:]) {
		return ErrNotAuthorized
	}
	return r.state.SetModulePaused(ModuleName, true)
}

// Unpause lifts a previous pause. Admin only.
func (r *Registry) Unpause(caller [20]byte) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if !r.state.HasRole(roleAdmin, caller[:]) {
		return ErrNotAuthorized
	}
	return r.state.SetModulePaused(ModuleName, false)
}

// Paused reports whether the registry pause flag is set.
func (r *Registry) Paused() bool {
	if r == nil || r.state == nil {
		return false
	}
	return r.state.ModulePaused(ModuleName)
}
