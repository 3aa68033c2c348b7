// Package report mails the summary of a batch run to the configured recipients.
package report

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
)

const templateName = "run_report"

type (
	Failure struct {
		Scope string
		Error string
	}

	// Run is the engine agnostic summary of a batch run.
	Run struct {
		Engine       string
		Title        string
		StartedAt    time.Time
		Duration     time.Duration
		Scopes       int
		FailedScopes int
		Considered   int
		Processed    int
		Written      int
		RecordErrors int
		Failures     []Failure
	}

	Service struct {
		mailSvc    core.EmailService
		logger     core.Logger
		recipients []mail.Address
		always     bool
	}
)

func failures(errs []*core.ScopeError) []Failure {
	out := make([]Failure, 0, len(errs))
	for _, e := range errs {
		out = append(out, Failure{Scope: e.Scope.String(), Error: e.Err.Error()})
	}
	return out
}

func FromRanking(startedAt time.Time, elapsed time.Duration, batch ranking.BatchSummary) Run {
	tot := batch.Total()
	return Run{
		Engine:       core.EngineRanking,
		Title:        "Ranking run",
		StartedAt:    startedAt.UTC(),
		Duration:     elapsed.Round(time.Millisecond),
		Scopes:       len(batch.Scopes) + len(batch.Failures),
		FailedScopes: len(batch.Failures),
		Considered:   tot.TotalStudents,
		Processed:    tot.Processed,
		Written:      tot.RankingsWritten,
		RecordErrors: tot.Errors,
		Failures:     failures(batch.Failures),
	}
}

func FromLeaderboards(startedAt time.Time, elapsed time.Duration, batch leaderboard.BatchSummary) Run {
	tot := batch.Total()
	return Run{
		Engine:       core.EngineLeaderboard,
		Title:        "Leaderboard run",
		StartedAt:    startedAt.UTC(),
		Duration:     elapsed.Round(time.Millisecond),
		Scopes:       batch.Processed(),
		FailedScopes: len(batch.Failures),
		Considered:   tot.Users,
		Processed:    batch.Succeeded(),
		Written:      tot.EntriesWritten,
		Failures:     failures(batch.Failures),
	}
}

func (r Run) Failed() bool { return r.FailedScopes > 0 }

func (r Run) Subject() string {
	if r.Failed() {
		return fmt.Sprintf("%s: %d of %d scopes failed", r.Title, r.FailedScopes, r.Scopes)
	}
	return fmt.Sprintf("%s: %d scopes updated", r.Title, r.Scopes)
}

// Message returns the templated email of r. It is rendered by the EmailService.
func Message(r Run, to []mail.Address) *core.EmailMessage {
	return &core.EmailMessage{
		To:           to,
		Subject:      r.Subject(),
		TemplateName: templateName,
		TemplateData: r,
	}
}

func NewService(mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		mailSvc:    mailSvc,
		logger:     logger,
		recipients: conf.Report.Recipients,
		always:     conf.Report.Always,
	}
}

// Send mails r when a scope failed, or whenever force or report.always is set.
// It reports whether a message was handed to the EmailService.
func (svc *Service) Send(r Run, force bool) bool {
	if !(r.Failed() || force || svc.always) {
		return false
	}
	if len(svc.recipients) == 0 {
		svc.logger.Warn(fmt.Sprintf("not sending %q: no report recipients configured", r.Subject()))
		return false
	}
	svc.mailSvc.SendMessages(Message(r, svc.recipients))
	return true
}
