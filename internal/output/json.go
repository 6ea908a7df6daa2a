package output

// JSONFormatter provides JSON-specific formatting.
type JSONFormatter struct {
	*Formatter
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(f *Formatter) *JSONFormatter {
	return &JSONFormatter{Formatter: f}
}

// ErrorResponse represents an error in JSON.
type ErrorResponse struct {
	Status     string `json:"status"`
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ListResponse wraps a list of records.
type ListResponse struct {
	Kind  string `json:"kind"`
	Items any    `json:"items"`
	Count int    `json:"count"`
	Total int    `json:"total,omitempty"`
}

// ResultResponse reports the outcome of a mutating command.
type ResultResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Count  *int   `json:"count,omitempty"`
}

// PrintError outputs an error in JSON format.
func (j *JSONFormatter) PrintError(status, errMsg, message string) error {
	return j.JSON(ErrorResponse{
		Status:  status,
		Error:   errMsg,
		Message: message,
	})
}

// PrintList outputs count items of kind. A nil slice is rendered as an
// empty array.
func (j *JSONFormatter) PrintList(kind string, items any, count, total int) error {
	if count == 0 {
		items = []struct{}{}
	}
	return j.JSON(ListResponse{Kind: kind, Items: items, Count: count, Total: total})
}

// PrintResult outputs status with optional data.
func (j *JSONFormatter) PrintResult(status string, data any) error {
	return j.JSON(ResultResponse{Status: status, Data: data})
}

// PrintCount outputs status with an affected-record count.
func (j *JSONFormatter) PrintCount(status string, n int) error {
	return j.JSON(ResultResponse{Status: status, Count: &n})
}
