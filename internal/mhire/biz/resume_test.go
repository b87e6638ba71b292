package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycvconnect/mhire/pkg/document"
	"github.com/mycvconnect/mhire/pkg/llm"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
)

const cvText = "Jane Doe\njane@example.com\nSoftware Engineer at Acme, 2020 - present"

func TestResumeParser_Parse(t *testing.T) {
	var opts llm.ChatOptions
	chat := &fakeChat{fn: func(messages []llm.Message, o llm.ChatOptions) (string, error) {
		opts = o
		return `{"personal_information":{"name":"Jane Doe","email":"jane@example.com"},
			"work_experience":[{"job_title":"Software Engineer","company_name":"Acme","currently_working_here":true}]}`, nil
	}}
	p := NewResumeParser(nil, chat, nil)

	data, err := p.Parse(context.Background(), "cv.txt", strings.NewReader(cvText))
	require.NoError(t, err)
	require.NotNil(t, data.PersonalInformation.Name)
	assert.Equal(t, "Jane Doe", *data.PersonalInformation.Name)
	assert.Nil(t, data.PersonalInformation.PhoneNumber)
	require.Len(t, data.WorkExperience, 1)
	assert.True(t, *data.WorkExperience[0].CurrentlyWorkingHere)
	assert.NotNil(t, data.Education)
	assert.Empty(t, data.Education)
	assert.NotNil(t, data.Skills)

	assert.True(t, opts.JSONMode)
	assert.Equal(t, 2000, opts.MaxTokens)

	calls := chat.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, llm.RoleSystem, calls[0][0].Role)
	assert.Contains(t, calls[0][1].Content, "Software Engineer at Acme")
}

func TestResumeParser_FencedReply(t *testing.T) {
	reply := "Here is the data:\n```json\n{\"skills\":[\"Go\",\"SQL\"]}\n```"
	p := NewResumeParser(nil, replyWith(reply), nil)

	data, err := p.Parse(context.Background(), "cv.md", strings.NewReader(cvText))
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "SQL"}, data.Skills)
}

func TestResumeParser_Errors(t *testing.T) {
	p := NewResumeParser(document.NewLoader(64), replyWith("not json at all"), nil)

	_, err := p.Parse(context.Background(), "cv.exe", strings.NewReader(cvText))
	assert.ErrorIs(t, err, apierrors.ErrUnsupportedFile)

	_, err = p.Parse(context.Background(), "cv.txt", strings.NewReader("  \n "))
	assert.ErrorIs(t, err, apierrors.ErrEmptyDocument)

	_, err = p.Parse(context.Background(), "cv.txt", strings.NewReader(strings.Repeat("x", 65)))
	assert.ErrorIs(t, err, apierrors.ErrFileTooLarge)

	_, err = p.Parse(context.Background(), "cv.txt", strings.NewReader(cvText))
	assert.ErrorIs(t, err, apierrors.ErrUpstreamModel)

	failing := NewResumeParser(nil, &fakeChat{fn: func([]llm.Message, llm.ChatOptions) (string, error) {
		return "", errUpstream
	}}, nil)
	_, err = failing.Parse(context.Background(), "cv.txt", strings.NewReader(cvText))
	assert.ErrorIs(t, err, apierrors.ErrUpstreamModel)
	assert.ErrorIs(t, err, errUpstream)
}
