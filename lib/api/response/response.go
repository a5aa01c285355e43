package response

import "giftbot/lib/clock"

type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Success       bool        `json:"success" validate:"required"`
	StatusMessage string      `json:"status_message"`
	Timestamp     string      `json:"timestamp"`
}

func Ok(data interface{}) Response {
	return Response{
		Data:          data,
		Success:       true,
		StatusMessage: "Success",
		Timestamp:     clock.Now(),
	}
}

func Error(message string) Response {
	return ErrorWithData(message, nil)
}

// ErrorWithData is a failed response that still carries a payload, such as
// the listener states behind an unhealthy probe.
func ErrorWithData(message string, data interface{}) Response {
	return Response{
		Data:          data,
		Success:       false,
		StatusMessage: message,
		Timestamp:     clock.Now(),
	}
}
