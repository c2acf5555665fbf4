package events

import (
	"math/big"

	"dqchain/core/types"
)

const (
	// TypeCourseCreated is emitted when a creator publishes a new course.
	TypeCourseCreated = "course.created"
	// TypeCoursePurchased is emitted on a settled course purchase.
	TypeCoursePurchased = "course.purchased"
	// TypeCourseUpdated covers price/metadata changes and status toggles.
	TypeCourseUpdated = "course.updated"
	// TypeCourseRevenueWithdrawn is emitted when a creator withdraws accrued revenue.
	TypeCourseRevenueWithdrawn = "course.revenue.withdrawn"
)

// CourseCreated captures a newly listed course.
type CourseCreated struct {
	CourseID        uint64
	Creator         [20]byte
	Price           *big.Int
	RevenueSharePct uint8
}

func (CourseCreated) EventType() string { return TypeCourseCreated }

func (e CourseCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeCourseCreated,
		Attributes: map[string]string{
			"courseId":     uintToString(e.CourseID),
			"creator":      bech(e.Creator),
			"price":        formatAmount(e.Price),
			"revenueShare": uintToString(uint64(e.RevenueSharePct)),
		},
	}
}

// CoursePurchased captures a settled purchase and the resulting revenue split.
type CoursePurchased struct {
	CourseID      uint64
	Buyer         [20]byte
	Price         *big.Int
	CreatorShare  *big.Int
	PlatformShare *big.Int
}

func (CoursePurchased) EventType() string { return TypeCoursePurchased }

func (e CoursePurchased) Event() *types.Event {
	return &types.Event{
		Type: TypeCoursePurchased,
		Attributes: map[string]string{
			"courseId":      uintToString(e.CourseID),
			"buyer":         bech(e.Buyer),
			"price":         formatAmount(e.Price),
			"creatorShare":  formatAmount(e.CreatorShare),
			"platformShare": formatAmount(e.PlatformShare),
		},
	}
}

// CourseUpdated captures mutations to an existing course listing.
type CourseUpdated struct {
	CourseID uint64
	Creator  [20]byte
	Active   bool
}

func (CourseUpdated) EventType() string { return TypeCourseUpdated }

func (e CourseUpdated) Event() *types.Event {
	active := "false"
	if e.Active {
		active = "true"
	}
	return &types.Event{
		Type: TypeCourseUpdated,
		Attributes: map[string]string{
			"courseId": uintToString(e.CourseID),
			"creator":  bech(e.Creator),
			"active":   active,
		},
	}
}

// CourseRevenueWithdrawn captures a creator draining accrued course revenue.
type CourseRevenueWithdrawn struct {
	CourseID uint64
	Creator  [20]byte
	Amount   *big.Int
}

func (CourseRevenueWithdrawn) EventType() string { return TypeCourseRevenueWithdrawn }

func (e CourseRevenueWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeCourseRevenueWithdrawn,
		Attributes: map[string]string{
			"courseId": uintToString(e.CourseID),
			"creator":  bech(e.Creator),
			"amount":   formatAmount(e.Amount),
		},
	}
}
