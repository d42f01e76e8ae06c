package handler

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// NewFieldErrorResponse carries the field-scoped validation errors so each
// message can be surfaced next to its offending input.
func NewFieldErrorResponse(fields interface{}) *Response {
	return &Response{
		Status:  "error",
		Message: "validation failed",
		Errors:  fields,
	}
}
