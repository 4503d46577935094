package models

const (
	// ContextSeparator joins retrieved chunk texts into one context string.
	ContextSeparator = "\n\n"
	// ThinkTag matches the reasoning block some chat models emit before the answer.
	ThinkTag = `(?s)<think>.*?</think>`
)

var (
	AnswerPromptTemplate = `Based on the following context, please answer the question:

Context: {context}

Question: {question}

Answer:
`

	MultiQueryPromptTemplate = `You are an AI language model assistant. Your task is to generate {count} different versions of the given user question to retrieve relevant documents from a vector database. By generating multiple perspectives on the user question, your goal is to help the user overcome some of the limitations of the distance-based similarity search. Provide these alternative questions separated by newlines.
Original question: {question}`
)
