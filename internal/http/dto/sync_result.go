package dto

import "github.com/edirooss/chansync/internal/domain/syncresult"

// SyncResponse wraps the per-channel results of one sync call.
type SyncResponse struct {
	Results   []*syncresult.Result `json:"results"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}

func NewSyncResponse(results []*syncresult.Result) SyncResponse {
	out := SyncResponse{Results: results}
	if out.Results == nil {
		out.Results = []*syncresult.Result{}
	}
	for _, r := range out.Results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return out
}
