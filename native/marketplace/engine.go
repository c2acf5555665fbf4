package marketplace

import (
	"encoding/binary"
	"math/big"
	"strings"
	"time"

	"dqchain/core/events"
	"dqchain/core/state"
	"dqchain/native/certificate"
	nativecommon "dqchain/native/common"
	"dqchain/native/token"
)

const (
	roleAdmin   = "ROLE_ADMIN"
	roleCreator = "ROLE_COURSE_CREATOR"
)

type engineState interface {
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
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

// certIssuer is the slice of the certificate registry the marketplace needs to
// certify completed purchases.
type certIssuer interface {
	Mint(caller, student [20]byte, courseID uint64, courseName string, score uint8, metadataURI string, now int64) (*certificate.Certificate, error)
}

// Engine runs the course marketplace: listings, purchases with revenue splits
// and creator withdrawals. The creator share of every sale sits in the escrow
// vault until withdrawn; the platform share funds the reward pool directly.
type Engine struct {
	state   engineState
	certs   certIssuer
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a marketplace engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st engineState) { e.state = st }

// SetCertificates wires the certificate registry used for course completions.
func (e *Engine) SetCertificates(c certIssuer) { e.certs = c }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

type statePauses struct{ st engineState }

func (p statePauses) IsPaused(module string) bool { return p.st.ModulePaused(module) }

func (e *Engine) guardPaused() error {
	return nativecommon.Guard(statePauses{st: e.state}, ModuleName)
}

func (e *Engine) move(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	fromBal, err := e.state.Balance(from[:], token.Symbol)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if err := e.state.SetBalance(from[:], token.Symbol, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	toBal, err := e.state.Balance(to[:], token.Symbol)
	if err != nil {
		return err
	}
	return e.state.SetBalance(to[:], token.Symbol, new(big.Int).Add(toBal, amount))
}

func (e *Engine) loadCourse(id uint64) (*Course, error) {
	course := new(Course)
	ok, err := e.state.KVGet(state.CourseKey(id), course)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCourseNotFound
	}
	if course.Price == nil {
		course.Price = big.NewInt(0)
	}
	if course.AccruedRevenue == nil {
		course.AccruedRevenue = big.NewInt(0)
	}
	return course, nil
}

func (e *Engine) writeCourse(course *Course) error {
	return e.state.KVPut(state.CourseKey(course.ID), course)
}

func validPrice(price *big.Int) bool {
	return price != nil && price.Sign() > 0
}

// CreateCourse lists a new course. The caller must hold ROLE_COURSE_CREATOR
// and the module must not be paused. The revenue share may be anywhere in
// [0,100]; a zero share routes every sale entirely to the platform.
func (e *Engine) CreateCourse(creator [20]byte, price *big.Int, metadataURI string, revenueSharePct uint8) (*Course, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !e.state.HasRole(roleCreator, creator[:]) {
		return nil, ErrNotAuthorized
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	if !validPrice(price) {
		return nil, ErrInvalidPrice
	}
	if revenueSharePct > 100 {
		return nil, ErrInvalidRevenueShare
	}
	id, err := e.state.NextID(courseSeq)
	if err != nil {
		return nil, err
	}
	course := &Course{
		ID:              id,
		Creator:         creator,
		Price:           new(big.Int).Set(price),
		MetadataURI:     strings.TrimSpace(metadataURI),
		Active:          true,
		RevenueSharePct: revenueSharePct,
		AccruedRevenue:  big.NewInt(0),
		CreatedAt:       uint64(e.now()),
	}
	if err := e.writeCourse(course); err != nil {
		return nil, err
	}
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], id)
	if err := e.state.KVAppend(state.CourseOwnerKey(creator[:]), idBytes[:]); err != nil {
		return nil, err
	}
	e.emit(events.CourseCreated{
		CourseID:        id,
		Creator:         creator,
		Price:           new(big.Int).Set(course.Price),
		RevenueSharePct: revenueSharePct,
	})
	return course.Clone(), nil
}

// split computes the creator and platform portions of a sale. The creator
// share rounds down; the platform takes the remainder so the sum always equals
// the price.
func split(price *big.Int, sharePct uint8) (creator, platform *big.Int) {
	creator = new(big.Int).Mul(price, big.NewInt(int64(sharePct)))
	creator.Div(creator, big.NewInt(100))
	platform = new(big.Int).Sub(price, creator)
	return creator, platform
}

// PurchaseCourse settles a course sale for the buyer. The creator share lands
// in the escrow vault against the course's accrued revenue; the platform share
// funds the reward pool. Buying the same course twice is allowed and pays the
// full price each time.
func (e *Engine) PurchaseCourse(buyer [20]byte, courseID uint64) (*Course, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	course, err := e.loadCourse(courseID)
	if err != nil {
		return nil, err
	}
	if !course.Active {
		return nil, ErrCourseInactive
	}
	creatorShare, platformShare := split(course.Price, course.RevenueSharePct)
	bal, err := e.state.Balance(buyer[:], token.Symbol)
	if err != nil {
		return nil, err
	}
	if bal.Cmp(course.Price) < 0 {
		return nil, ErrInsufficientFunds
	}
	if err := e.move(buyer, EscrowVaultAddress, creatorShare); err != nil {
		return nil, err
	}
	if err := e.move(buyer, token.RewardPoolAddress, platformShare); err != nil {
		return nil, err
	}
	course.AccruedRevenue = new(big.Int).Add(course.AccruedRevenue, creatorShare)
	if err := e.writeCourse(course); err != nil {
		return nil, err
	}
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], courseID)
	if err := e.state.KVAppend(state.EnrollmentKey(buyer[:]), idBytes[:]); err != nil {
		return nil, err
	}
	e.emit(events.CoursePurchased{
		CourseID:      courseID,
		Buyer:         buyer,
		Price:         new(big.Int).Set(course.Price),
		CreatorShare:  creatorShare,
		PlatformShare: platformShare,
	})
	return course.Clone(), nil
}

// UpdateCourse changes the price, metadata URI and revenue share of a listing.
// Only the course creator may update it.
func (e *Engine) UpdateCourse(caller [20]byte, courseID uint64, price *big.Int, metadataURI string, revenueSharePct uint8) (*Course, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	course, err := e.loadCourse(courseID)
	if err != nil {
		return nil, err
	}
	if course.Creator != caller {
		return nil, ErrNotAuthorized
	}
	if !validPrice(price) {
		return nil, ErrInvalidPrice
	}
	if revenueSharePct > 100 {
		return nil, ErrInvalidRevenueShare
	}
	course.Price = new(big.Int).Set(price)
	course.MetadataURI = strings.TrimSpace(metadataURI)
	course.RevenueSharePct = revenueSharePct
	if err := e.writeCourse(course); err != nil {
		return nil, err
	}
	e.emit(events.CourseUpdated{CourseID: courseID, Creator: caller, Active: course.Active})
	return course.Clone(), nil
}

// ToggleCourseStatus flips a listing between active and inactive. Only the
// course creator may toggle it.
func (e *Engine) ToggleCourseStatus(caller [20]byte, courseID uint64) (*Course, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	course, err := e.loadCourse(courseID)
	if err != nil {
		return nil, err
	}
	if course.Creator != caller {
		return nil, ErrNotAuthorized
	}
	course.Active = !course.Active
	if err := e.writeCourse(course); err != nil {
		return nil, err
	}
	e.emit(events.CourseUpdated{CourseID: courseID, Creator: caller, Active: course.Active})
	return course.Clone(), nil
}

// WithdrawRevenue drains the accrued creator share of a course from the escrow
// vault. The accrual is zeroed before funds move so a partial failure can
// never double-pay after a rollback.
func (e *Engine) WithdrawRevenue(caller [20]byte, courseID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	course, err := e.loadCourse(courseID)
	if err != nil {
		return nil, err
	}
	if course.Creator != caller {
		return nil, ErrNotAuthorized
	}
	amount := course.AccruedRevenue
	if amount.Sign() == 0 {
		return nil, ErrNothingToWithdraw
	}
	course.AccruedRevenue = big.NewInt(0)
	if err := e.writeCourse(course); err != nil {
		return nil, err
	}
	if err := e.move(EscrowVaultAddress, caller, amount); err != nil {
		return nil, err
	}
	e.emit(events.CourseRevenueWithdrawn{
		CourseID: courseID,
		Creator:  caller,
		Amount:   new(big.Int).Set(amount),
	})
	return amount, nil
}

// IssueCertificate certifies a student's completion of a purchased course. The
// caller must be the course creator and the student must be enrolled; the mint
// itself runs under the marketplace's own minter identity.
func (e *Engine) IssueCertificate(caller, student [20]byte, courseID uint64, courseName string, score uint8, metadataURI string) (*certificate.Certificate, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.certs == nil {
		return nil, ErrNilCertificates
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	course, err := e.loadCourse(courseID)
	if err != nil {
		return nil, err
	}
	if course.Creator != caller {
		return nil, ErrNotAuthorized
	}
	enrolled, err := e.IsEnrolled(student, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}
	return e.certs.Mint(ModuleAddress, student, courseID, strings.TrimSpace(courseName), score, strings.TrimSpace(metadataURI), e.now())
}

// GetCourse loads a course listing by ID.
func (e *Engine) GetCourse(courseID uint64) (*Course, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	course, err := e.loadCourse(courseID)
	if err != nil {
		return nil, err
	}
	return course.Clone(), nil
}

// NextCourseID reports the ID the next created course will receive.
func (e *Engine) NextCourseID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	current, err := e.state.CurrentID(courseSeq)
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

func decodeIDList(raw [][]byte) []uint64 {
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			continue
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids
}

// CoursesByCreator lists the course IDs published by an address.
func (e *Engine) CoursesByCreator(creator [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(state.CourseOwnerKey(creator[:]), &raw); err != nil {
		return nil, err
	}
	return decodeIDList(raw), nil
}

// Enrollments lists the course IDs a student has purchased.
func (e *Engine) Enrollments(student [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(state.EnrollmentKey(student[:]), &raw); err != nil {
		return nil, err
	}
	return decodeIDList(raw), nil
}

// IsEnrolled reports whether a student has purchased a course.
func (e *Engine) IsEnrolled(student [20]byte, courseID uint64) (bool, error) {
	ids, err := e.Enrollments(student)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == courseID {
			return true, nil
		}
	}
	return false, nil
}

// Pause blocks listings, purchases and withdrawals. Admin only.
func (e *Engine) Pause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(roleAdmin, caller[:]) {
		return ErrNotAuthorized
	}
	return e.state.SetModulePaused(ModuleName, true)
}

// Unpause lifts a previous pause. Admin only.
func (e *Engine) Unpause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(roleAdmin, caller[:]) {
		return ErrNotAuthorized
	}
	return e.state.SetModulePaused(ModuleName, false)
}

// Paused reports whether the module pause flag is set.
func (e *Engine) Paused() bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.ModulePaused(ModuleName)
}
