package state

import (
	"encoding/binary"
)

// Raw key builders shared between the state manager and the native modules.
// Each returns the unhashed key; the KV helpers hash before hitting the trie.

const (
	tokenStakePrefix  = "token/stake/"
	tokenParamsKey    = "token/params"
	coursePrefix      = "market/course/"
	courseOwnerPrefix = "market/owner/"
	enrollmentPrefix  = "market/enrollment/"
	certPrefix        = "cert/token/"
	certLookupPrefix  = "cert/lookup/"
	certHolderPrefix  = "cert/holder/"
)

func appendUint64(buf []byte, v uint64) []byte {
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], v)
	return append(buf, scratch[:]...)
}

// TokenStakeKey addresses the stake record for an owner.
func TokenStakeKey(owner []byte) []byte {
	return append([]byte(tokenStakePrefix), owner...)
}

// TokenParamsKey addresses the reward/staking parameter block.
func TokenParamsKey() []byte {
	return []byte(tokenParamsKey)
}

// CourseKey addresses a course record by its identifier.
func CourseKey(id uint64) []byte {
	return appendUint64([]byte(coursePrefix), id)
}

// CourseOwnerKey addresses the list of course IDs created by an address.
func CourseOwnerKey(creator []byte) []byte {
	return append([]byte(courseOwnerPrefix), creator...)
}

// EnrollmentKey addresses the list of course IDs purchased by a student.
func EnrollmentKey(student []byte) []byte {
	return append([]byte(enrollmentPrefix), student...)
}

// CertificateKey addresses a certificate record by token ID.
func CertificateKey(tokenID uint64) []byte {
	return appendUint64([]byte(certPrefix), tokenID)
}

// CertificateLookupKey addresses the (student, course) uniqueness index.
func CertificateLookupKey(student []byte, courseID uint64) []byte {
	buf := append([]byte(certLookupPrefix), student...)
	buf = append(buf, ':')
	return appendUint64(buf, courseID)
}

// CertificateHolderKey addresses the enumerable token list for a student.
func CertificateHolderKey(student []byte) []byte {
	return append([]byte(certHolderPrefix), student...)
}
