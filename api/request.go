package api

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

type EvalReq struct {
	EvalUuid string `json:"eval_uuid"`

	Code   string    `json:"code"`
	LangId string    `json:"lang_id"`
	Tests  []ReqTest `json:"tests"`

	CpuMillis  int   `json:"cpu_millis"`
	WallMillis int   `json:"wall_millis"`
	MemoryKiB  int64 `json:"memory_kib"`

	// Where streamed results go when the request arrived over SQS
	ResSqsUrl string `json:"res_sqs_url,omitempty"`
}

type ReqTest struct {
	ID int `json:"id"`

	// Sha256 to check if file exists in cache
	InSha256 *string `json:"in_sha256,omitempty"`
	// URL to download file if missing
	InUrl *string `json:"in_url,omitempty"`
	// Content directly as an alternative to URL
	InContent *string `json:"in_content,omitempty"`

	AnsSha256  *string `json:"ans_sha256,omitempty"`
	AnsUrl     *string `json:"ans_url,omitempty"`
	AnsContent *string `json:"ans_content,omitempty"`
}

var ErrInvalidRequest = errors.New("invalid evaluation request")

// Validate checks the request shape. Language support and limits are
// checked later by the judge itself.
func (r *EvalReq) Validate() error {
	if r.EvalUuid == "" {
		return fmt.Errorf("%w: missing eval_uuid", ErrInvalidRequest)
	}
	if r.LangId == "" {
		return fmt.Errorf("%w: missing lang_id", ErrInvalidRequest)
	}
	ids := mapset.NewThreadUnsafeSet[int]()
	for _, t := range r.Tests {
		if !ids.Add(t.ID) {
			return fmt.Errorf("%w: duplicate test id %d", ErrInvalidRequest, t.ID)
		}
		if err := checkFile(t.InContent, t.InUrl, t.InSha256); err != nil {
			return fmt.Errorf("%w: test %d input: %v", ErrInvalidRequest, t.ID, err)
		}
		if err := checkFile(t.AnsContent, t.AnsUrl, t.AnsSha256); err != nil {
			return fmt.Errorf("%w: test %d answer: %v", ErrInvalidRequest, t.ID, err)
		}
	}
	return nil
}

func checkFile(content, url, sha *string) error {
	if content != nil {
		return nil
	}
	if url == nil || sha == nil {
		return errors.New("needs either content or both url and sha256")
	}
	return nil
}
