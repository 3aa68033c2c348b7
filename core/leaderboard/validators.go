package leaderboard

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cheo/core"
)

var (
	scopeTag  = "lbscope"
	scopeText = "must be one of: site, course, category"

	periodTag  = "lbperiod"
	periodText = "must be one of: all_time, daily, weekly, monthly"

	scopeIDTag  = "lbscopeid"
	scopeIDText = "a course or category leaderboard needs a scope_id"
)

func init() {
	_ = core.Validate.RegisterValidation(scopeTag, scopeValidation)
	core.RegisterCustomTranslation(scopeTag, scopeText)

	_ = core.Validate.RegisterValidation(periodTag, periodValidation)
	core.RegisterCustomTranslation(periodTag, periodText)

	core.Validate.RegisterStructValidation(leaderboardValidation, Leaderboard{})
	core.RegisterCustomTranslation(scopeIDTag, scopeIDText)
}

func scopeValidation(fl validator.FieldLevel) bool {
	return IsValidScope(Scope(fl.Field().String()))
}

func periodValidation(fl validator.FieldLevel) bool {
	return IsValidPeriod(Period(fl.Field().String()))
}

func leaderboardValidation(sl validator.StructLevel) {
	lb := sl.Current().Interface().(Leaderboard)
	if lb.Scope != ScopeSite && IsValidScope(lb.Scope) && lb.ScopeID == "" {
		sl.ReportError(lb.ScopeID, "scope_id", "ScopeID", scopeIDTag, "")
	}
}
