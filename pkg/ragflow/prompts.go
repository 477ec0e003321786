package ragflow

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"
)

var (
	analysisPrompt = template.Must(template.New("analysis").Parse(
		`You are a professional query analysis expert. Your task is to analyze and refine user queries to improve search effectiveness.

Original Query: {{.Query}}

Please analyze this query considering the following points:
1. What is the main topic of the query?
2. Does the query contain a specific time range? (Especially after September 2021)
3. Does the query involve topics such as environment, climate change, or ecological conservation?
4. Should additional relevant keywords be added for better search results?

Please provide an enhanced query that helps the retrieval system find the most relevant environmental news articles. The returned query should be a comprehensive search string.`))

	cleaningPrompt = template.Must(template.New("cleaning").Parse(
		`You are a professional document cleaning expert. Your task is to clean and extract relevant information from the retrieved documents.

Query: {{.Query}}

Document Content:
{{.Content}}

Please perform the following tasks:
1. Remove content unrelated to the query
2. Eliminate redundant information
3. Extract the most relevant facts and data
4. Maintain sentence integrity

Return the cleaned document content, ensuring that all important information related to the query is retained.`))

	evaluationPrompt = template.Must(template.New("evaluation").Parse(
		`You are a document relevance evaluation expert. Your task is to assess the relevance of the following documents to the given query.

Query: {{.Query}}

Document list:
{{.Documents}}

Please assign a score (1-10) to each document, where 1 means completely irrelevant and 10 means highly relevant.

Return the evaluation result in JSON format, including document index, relevance score, and whether to retain the document (retain if score >= 6).

JSON format:
{
    "evaluation": [
        {
            "document_index": 0,
            "relevance_score": 8,
            "retain": true
        },
        ...
    ],
    "retained_document_indices": [0, ...]
}`))

	reformulationPrompt = template.Must(template.New("reformulation").Parse(
		`You are an advanced query reformulation expert. The following query has been initially retrieved, but the results are not ideal. Please help reformulate the query to obtain more relevant results.

Original Query: {{.Query}}

Retrieved document summaries:
{{.Summary}}

This is reformulation attempt {{.Attempt}}. Based on the original query and existing information, generate a query variation significantly different from previous attempts, ensuring the use of new keywords and perspectives.

Return a final query string that incorporates these variations while remaining relevant to the original question but improving retrieval effectiveness.`))

	answerPrompt = template.Must(template.New("answer").Parse(
		`You are a professional environmental news analysis assistant. Based on the provided document content, answer the user's question.

Question: {{.Query}}
{{if .Caveat}}
{{.Caveat}}
{{end}}
References:
{{.Sources}}

Please provide a comprehensive and accurate response that meets the following requirements:
1. Directly answer the user's question.
2. Strictly base your response on the provided references; do not add your own knowledge.
3. If the references do not contain sufficient information, honestly state that you cannot find the answer from the given sources.
4. The response should be well-structured and easy to understand.
5. Cite specific data and facts, clearly indicating the source of information.
6. Avoid oversimplifying complex issues.
7. Do not fabricate or speculate on information that is not explicitly mentioned in the references.

Response:`))
)

const documentSeparator = "\n\n---Document Separator---\n\n"

// Fixed answers returned without a collaborator call.
const (
	// NotFoundAnswer is returned when nothing was retrieved and no
	// reformulation was attempted.
	NotFoundAnswer = "Sorry, I could not find information related to your question. Please try asking in a different way or provide more details."

	lowConfidenceCaveat  = "Please note that the information I found may have low relevance to your question."
	highConfidenceCaveat = "I found highly relevant information for your question."
)

// ExhaustedAnswer is returned when reformulation ran and still nothing was
// found. It names the attempt count and the likely causes.
func ExhaustedAnswer(attempts int) string {
	return fmt.Sprintf("Sorry, I attempted multiple queries (%d attempts), but could not find relevant information for your question."+
		" This may be because: 1) The database does not contain this information; 2) Your question needs more specific details;"+
		" 3) It relates to information after September 2021. Please try rephrasing your question or providing more details.", attempts)
}

// ConfidenceCaveat returns the sentence the answer prompt carries for a
// confidence score, or "" in the neutral band.
func ConfidenceCaveat(score float64) string {
	switch {
	case score < ConfidenceThreshold:
		return lowConfidenceCaveat
	case score >= HighConfidence:
		return highConfidenceCaveat
	default:
		return ""
	}
}

// SummarizeDocuments renders the document summary shown to the reformulator.
func SummarizeDocuments(docs []Document) string {
	if len(docs) == 0 {
		return "No sufficiently relevant documents found."
	}
	lines := make([]string, 0, SummaryDocLimit)
	for i, d := range docs[:min(len(docs), SummaryDocLimit)] {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, truncateRunes(d.Content, SummaryRuneLimit)))
	}
	return strings.Join(lines, "\n")
}

// FormatSources renders documents as numbered, labelled sources for the
// answer prompt.
func FormatSources(docs []Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		label := d.Source()
		if label == "" {
			label = "unknown source"
		}
		parts[i] = fmt.Sprintf("Source %d (%s):\n%s", i+1, label, d.Content)
	}
	return strings.Join(parts, "\n\n")
}

func formatCandidates(docs []Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = fmt.Sprintf("Document %d:\n%s", i, d.Content)
	}
	return strings.Join(parts, documentSeparator)
}

// truncateRunes cuts s to n runes and marks the cut with "...".
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
