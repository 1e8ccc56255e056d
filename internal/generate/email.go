package generate

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/spigell/fitcheck/internal/ai"
	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/llmjson"
)

const (
	emailSystem      = "You write sincere, concise job application e-mails. Answer with strict JSON."
	emailExcerpt     = 2000
	emailCompany     = 1000
	emailSummary     = 500
	emailMatched     = 5
	emailGaps        = 3
	emailResumeIntro = 200
	fallbackSubject  = "Application for the engineering position"
)

// Email drafts an application e-mail. imp may be nil when the improvements
// generator did not produce anything.
func (s *Service) Email(ctx context.Context, in Context, imp *fit.Improvements) (fit.ApplicationEmail, error) {
	strategy := ""
	if imp != nil {
		strategy = imp.OverallStrategy
	}

	prompt := ai.Render(emailPrompt, map[string]string{
		"JOB_TEXT":     cut(in.JobText, emailExcerpt),
		"COMPANY_INFO": orNone(cut(in.CompanyInfo, emailCompany)),
		"RESUME_TEXT":  cut(in.ResumeText, emailExcerpt),
		"SUMMARY":      orNone(cut(in.Summary, emailSummary)),
		"MATCHED":      formatMatched(in.Matched, emailMatched, false),
		"GAPS":         formatGaps(in.Gaps, emailGaps, false),
		"STRATEGY":     orNone(cut(strategy, emailSummary)),
	})

	return run(ctx, s, "email", ai.Request{
		System:      emailSystem,
		Prompt:      prompt,
		Temperature: ai.Temperature(0.7),
	}, emailSchema, decodeEmail, func() fit.ApplicationEmail {
		return FallbackEmail(in.ResumeText)
	})
}

func decodeEmail(doc gjson.Result) (fit.ApplicationEmail, error) {
	out := fit.ApplicationEmail{
		Subject:               llmjson.Text(doc.Get("subject")),
		Body:                  llmjson.Text(doc.Get("body")),
		AttachmentSuggestions: llmjson.Texts(doc.Get("attachment_suggestions")),
		Tips:                  llmjson.Texts(doc.Get("tips")),
	}
	if out.Subject == "" || out.Body == "" {
		return fit.ApplicationEmail{}, errEmptyResult
	}
	return out, nil
}

// FallbackEmail returns a template the candidate has to finish by hand.
func FallbackEmail(resume string) fit.ApplicationEmail {
	body := fmt.Sprintf(`Dear Hiring Manager,

I am writing to apply for the position you advertised.

A short overview of my background:
%s

I believe my experience matches the role and I would welcome the opportunity to discuss it in an interview.

Best regards,
[Your name]
[Contact details]`, cut(resume, emailResumeIntro))

	return fit.ApplicationEmail{
		Subject:               fallbackSubject,
		Body:                  body,
		AttachmentSuggestions: []string{"Résumé", "Portfolio (if applicable)"},
		Tips: []string{
			"Check for typos and grammar mistakes",
			"Re-read the content before sending",
			"Verify the company name and job title",
		},
	}
}
