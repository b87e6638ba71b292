package biz

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/internal/mhire/metrics"
	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/pkg/document"
	"github.com/mycvconnect/mhire/pkg/llm"
	"github.com/mycvconnect/mhire/pkg/resilience"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/json"
	"github.com/mycvconnect/mhire/pkg/utils/requestid"
)

const resumeSystemPrompt = "You are an expert CV/Resume parser. Extract information accurately and return only valid JSON."

const resumePrompt = `Extract the following information from the CV/Resume text below and return it as a JSON object with exactly this structure:

{
  "personal_information": {
    "name": "Full name",
    "phone_number": "Phone number",
    "email": "Email address",
    "gender": "Gender",
    "date_of_birth": "Date of birth in dd/mm/yyyy format",
    "summary": "Professional summary or objective",
    "country": "Country",
    "street_address": "Street address",
    "city_state": "City and State",
    "postal_code": "Postal code"
  },
  "education": [
    {
      "school_university": "Institution name",
      "location": "Location",
      "degree": "Degree/qualification",
      "start_date": "Start date in dd/mm/yyyy format",
      "end_date": "End date in dd/mm/yyyy format"
    }
  ],
  "work_experience": [
    {
      "job_title": "Job title",
      "company_name": "Company name",
      "location": "Location",
      "currently_working_here": true,
      "start_date": "Start date in dd/mm/yyyy format",
      "end_date": "End date in dd/mm/yyyy format or null if currently working",
      "responsibility": "Job responsibilities and achievements"
    }
  ],
  "job_preferences": {
    "job_categories": "Preferred job categories",
    "pay_day": "Payment frequency preference",
    "salary_range": "Expected salary range",
    "start_date": "Preferred start date",
    "end_date": "Contract end date if applicable"
  },
  "skills": ["skill1", "skill2"]
}

Rules:
1. Use null for information that is not present.
2. Use true/false for boolean fields.
3. List every education entry and work experience as its own object.
4. Include both technical and soft skills.
5. Write all dates as dd/mm/yyyy.
6. Return only the JSON object, no other text.

CV/Resume text:
%s`

// ResumeParser turns an uploaded CV into ResumeData with the chat model.
type ResumeParser struct {
	loader  *document.Loader
	chat    llm.ChatProvider
	policy  *resilience.Policy
	metrics *metrics.Metrics
}

// NewResumeParser creates a ResumeParser.
func NewResumeParser(loader *document.Loader, chat llm.ChatProvider, policy *resilience.Policy) *ResumeParser {
	if loader == nil {
		loader = document.NewLoader(document.DefaultMaxBytes)
	}
	if policy == nil {
		policy = resilience.NoRetry()
	}
	return &ResumeParser{loader: loader, chat: chat, policy: policy}
}

// WithMetrics makes the parser count parses and failures in m.
func (p *ResumeParser) WithMetrics(m *metrics.Metrics) *ResumeParser {
	p.metrics = m
	return p
}

// Parse extracts the text of the file named filename and asks the model
// for the structured fields.
func (p *ResumeParser) Parse(ctx context.Context, filename string, r io.Reader) (*model.ResumeData, error) {
	data, err := p.parse(ctx, filename, r)
	p.metrics.RecordResume(err)
	return data, err
}

func (p *ResumeParser) parse(ctx context.Context, filename string, r io.Reader) (*model.ResumeData, error) {
	text, err := p.loader.ParseReader(filename, r)
	if err != nil {
		return nil, mapDocumentError(err)
	}

	var reply string
	err = p.policy.Do(ctx, upstreamChat, func(ctx context.Context) error {
		out, err := llm.Generate(ctx, p.chat, fmt.Sprintf(resumePrompt, text), resumeSystemPrompt,
			llm.WithTemperature(0.1), llm.WithMaxTokens(2000), llm.WithJSONMode())
		reply = out
		return err
	})
	if err != nil {
		return nil, apierrors.ErrUpstreamModel.WithCause(err)
	}

	data, err := decodeResume(reply)
	if err != nil {
		logger.Warnw("resume reply is not valid JSON",
			"request_id", requestid.FromContext(ctx),
			"error", err.Error(),
		)
		return nil, apierrors.ErrUpstreamModel.WithMessage("language model returned malformed resume data").WithCause(err)
	}
	return data, nil
}

// decodeResume parses reply, falling back to the outermost {...} span
// when the model wrapped the JSON in prose or a code fence.
func decodeResume(reply string) (*model.ResumeData, error) {
	var data model.ResumeData
	err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &data)
	if err != nil {
		start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object in reply: %w", err)
		}
		data = model.ResumeData{}
		if err := json.Unmarshal([]byte(reply[start:end+1]), &data); err != nil {
			return nil, err
		}
	}
	data.Normalize()
	return &data, nil
}
