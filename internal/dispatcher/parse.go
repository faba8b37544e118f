package dispatcher

import "encoding/json"

func parsePromptID(body []byte) (string, error) {
	var resp struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	return resp.PromptID, nil
}
