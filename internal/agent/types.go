package agent

import (
	"strconv"

	"agenthost/internal/config"
)

// Environment variables every synthesized agent job receives.
// This is the contract with the agent image.
const (
	EnvOrgURL = "AZP_URL"
	EnvToken  = "AZP_TOKEN"
	EnvPool   = "AZP_POOL"
)

// DefaultJobPrefix is used when JOB_PREFIX is not configured.
const DefaultJobPrefix = "agent-job-"

// Configuration keys shared by all backends.
const (
	KeyJobPrefix = "JOB_PREFIX"
	KeyJobImage  = "JOB_IMAGE"
	KeyOrgURL    = "ORG_URL"
	KeyOrgToken  = "ORG_PAT"
)

// ConcatName derives a job name as prefix + requestID.
func ConcatName(prefix string, requestID int64) string {
	return prefix + strconv.FormatInt(requestID, 10)
}

// HyphenName derives a job name as prefix + "-" + requestID.
func HyphenName(prefix string, requestID int64) string {
	return prefix + "-" + strconv.FormatInt(requestID, 10)
}

// EnvVar is a single name/value pair passed to the agent.
type EnvVar struct {
	Name  string
	Value string
}

// Launch holds the launch parameters fixed at backend construction.
type Launch struct {
	Image  string
	OrgURL string
	Token  string
}

// LoadLaunch reads the image, organization URL and token, all required.
func LoadLaunch(src config.Source) (Launch, error) {
	var (
		l   Launch
		err error
	)
	if l.Image, err = config.Required(src, KeyJobImage); err != nil {
		return Launch{}, err
	}
	if l.OrgURL, err = config.Required(src, KeyOrgURL); err != nil {
		return Launch{}, err
	}
	if l.Token, err = config.Required(src, KeyOrgToken); err != nil {
		return Launch{}, err
	}
	return l, nil
}

// Env returns the three agent environment variables for pool, in fixed order.
func (l Launch) Env(pool string) []EnvVar {
	return []EnvVar{
		{Name: EnvOrgURL, Value: l.OrgURL},
		{Name: EnvToken, Value: l.Token},
		{Name: EnvPool, Value: pool},
	}
}

// Request asks for an agent for one work request.
type Request struct {
	RequestID *int64 `json:"requestId"`
	Pool      string `json:"pool"`
}

// Result describes the outcome of an ensure call.
type Result struct {
	RequestID int64  `json:"requestId"`
	JobName   string `json:"jobName"`
	Created   bool   `json:"created"`
}

// Status reports whether the job for a request exists.
type Status struct {
	RequestID   int64  `json:"requestId"`
	JobName     string `json:"jobName"`
	Provisioned bool   `json:"provisioned"`
}
