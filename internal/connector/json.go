package connector

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edirooss/chansync/internal/transport"
	"github.com/tidwall/gjson"
)

// CheckJSON surfaces an application-level error carried in a 2xx JSON
// reply: a non-empty "errors" array or "success": false.
func CheckJSON(resp *transport.Response) error {
	if resp == nil || !resp.IsJSON() {
		return nil
	}
	doc := resp.JSON()

	if errs := doc.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		var msgs []string
		errs.ForEach(func(_, e gjson.Result) bool {
			msg := e.Get("message").String()
			if msg == "" {
				msg = e.String()
			}
			if code := e.Get("code").String(); code != "" {
				msg = fmt.Sprintf("[%s] %s", code, msg)
			}
			msgs = append(msgs, msg)
			return true
		})
		return fmt.Errorf("channel rejected request: %s", strings.Join(msgs, "; "))
	}
	if ok := doc.Get("success"); ok.Exists() && ok.Type == gjson.False {
		msg := doc.Get("message").String()
		if msg == "" {
			msg = "unspecified error"
		}
		return fmt.Errorf("channel rejected request: %s", msg)
	}
	return nil
}

// JSONBody marshals v for a request body. Marshalling plain request structs
// cannot fail, so a failure is a programming error.
func JSONBody(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal request body: %v", err))
	}
	return b
}
