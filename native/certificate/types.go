package certificate

// ModuleName identifies the certificate registry for pause flags and routing.
const ModuleName = "certificate"

// MinPassingScore is the lowest score that earns a certificate.
const MinPassingScore uint8 = 70

// tokenSeq names the monotonic sequence backing token IDs. The first minted
// certificate receives ID 1.
const tokenSeq = "cert/token"

// Certificate is the persisted record behind a non-transferable completion
// credential. Timestamps are stored as unix seconds.
type Certificate struct {
	TokenID     uint64
	Student     [20]byte
	CourseID    uint64
	CourseName  string
	Score       uint8
	MetadataURI string
	IssuedAt    uint64
}

// Clone returns a copy safe to hand to callers.
func (c *Certificate) Clone() *Certificate {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
