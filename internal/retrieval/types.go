package retrieval

// Passage is one retrieved context chunk backing a generated answer.
type Passage struct {
	Content string
	Source  string
}

// Response is the output shape of the retrieval+generation service for one
// chat turn. The scoring layer never inspects anything beyond this.
type Response struct {
	Answer   string
	Passages []Passage
}

// Turn is one question/answer exchange of the bounded conversation history
// passed explicitly with each request.
type Turn struct {
	Question string
	Answer   string
}
