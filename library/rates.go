package library

// FineSchedule names every tariff and limit the circulation rules use, so each
// is a single overridable value instead of a constant buried in a code path.
//
// The legacy system carried two drifting overdue tariffs (100/day in the
// return path, 0.50/day capped at half the book price in the sweep) and two
// damage multipliers (50% on return, 30% on the standalone endpoint). Which
// overdue tariff is authoritative is still a product decision, so the
// alternate values are kept here under Legacy* names rather than silently
// dropped. The defaults make every issuing path use OverdueDailyRate.
type FineSchedule struct {
	// OverdueDailyRate is charged per whole day a returned or swept loan is
	// past due, in currency units.
	OverdueDailyRate float64
	// ReturnDamagePercent of the purchase price is charged when a book comes
	// back damaged through the return desk.
	ReturnDamagePercent float64
	// DamagePercentOfPrice of the purchase price is charged by the standalone
	// damage report, which also marks the loan lost.
	DamagePercentOfPrice float64
	// LossPercentOfPrice of the purchase price is charged when a book is
	// reported lost.
	LossPercentOfPrice float64

	// FinePaymentDays is how long a patron has to pay a fine issued at the
	// return desk or by the sweep.
	FinePaymentDays int
	// StandaloneFineDueDays is the payment window for damage/loss fines from
	// the standalone report endpoint.
	StandaloneFineDueDays int

	// EscalationFactor multiplies a pending fine each time the sweep finds it
	// past its own due date.
	EscalationFactor float64
	// EscalationBanThreshold: a patron with more pending fines than this is
	// banned during escalation.
	EscalationBanThreshold int
	// BanDays is the length of an escalation ban.
	BanDays int

	MaxRenewals    int
	MaxActiveLoans int

	DefaultLoanDays    int
	DefaultRenewalDays int

	// LegacySweepDailyRate and LegacySweepMaxPercent record the second overdue
	// tariff found in the old sweep module. Not applied by default.
	LegacySweepDailyRate  float64
	LegacySweepMaxPercent float64
}

// DefaultFineSchedule returns the schedule the library currently operates on.
func DefaultFineSchedule() FineSchedule {
	return FineSchedule{
		OverdueDailyRate:       100,
		ReturnDamagePercent:    0.5,
		DamagePercentOfPrice:   0.3,
		LossPercentOfPrice:     1.0,
		FinePaymentDays:        7,
		StandaloneFineDueDays:  30,
		EscalationFactor:       1.10,
		EscalationBanThreshold: 2,
		BanDays:                90,
		MaxRenewals:            2,
		MaxActiveLoans:         3,
		DefaultLoanDays:        14,
		DefaultRenewalDays:     7,
		LegacySweepDailyRate:   0.50,
		LegacySweepMaxPercent:  0.5,
	}
}
