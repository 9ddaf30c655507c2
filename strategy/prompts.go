package strategy

import (
	"fmt"
	"strings"
)

const (
	analystSystem    = "You are an expert sales analyst who answers questions about sales calls accurately, using only the context you are given."
	summarizerSystem = "You are an expert sales analyst who summarizes sales calls clearly and concisely."
	sqlSystem        = "You are a SQL expert who writes safe, efficient SQLite queries from a schema and a user requirement."

	remoteRetryText = "the embedding service did not respond in time or is unavailable. Please try again in a moment."
)

const queryAnalysisTemplate = `
You help sales teams analyze their call transcripts. Answer the user's question using the context from the transcripts below.

Context from sales calls:
%s

User question: %s

Instructions:
1. Answer based ONLY on the information in the context
2. If the context does not contain enough information, say so
3. Quote the transcript or cite timestamps when relevant
4. Be concise but thorough
5. When several calls are involved, make clear which call each point comes from

Answer:
`

const callSummaryTemplate = `
Analyze this sales call transcript and write a summary.

Call: %s
Participants: %s

Transcript:
%s

Cover the following:
1. Call purpose and agenda
2. Key discussion points
3. Customer concerns or objections raised
4. Next steps or commitments made
5. Overall call sentiment and outcome

Format the response as a clear, structured summary.
`

const sqlQueryTemplate = `
Write a single SQLite query for the user requirement below, using this schema.

Table: calls
- call_id (TEXT, PRIMARY KEY): unique identifier for each call
- filename (TEXT): name of the call transcript file
- content (TEXT): full transcript text
- participants (TEXT): JSON array of participant names
- created_at (TEXT): ISO-8601 UTC time the call was ingested
- metadata (TEXT): JSON object with additional call metadata

Table: chunks
- chunk_id (TEXT, PRIMARY KEY): unique identifier for each text chunk
- call_id (TEXT, FOREIGN KEY): the call this chunk belongs to
- content (TEXT): the text of the chunk, one "[HH:MM] Speaker: text" line per turn
- speaker (TEXT): the speaker with the most turns in the chunk
- speakers (TEXT): JSON array of every speaker in the chunk
- timestamp (TEXT): HH:MM of the chunk's first turn
- chunk_index (INTEGER): position of the chunk within the call, starting at 0

One call has many chunks. Join them on call_id.

User requirement: %s

Rules:
1. Write ONLY a SELECT query (a WITH clause is fine). Never modify data or schema.
2. Use JOINs when you need both tables
3. Filter with WHERE clauses where appropriate
4. Add a LIMIT when the result could be large
5. participants and speakers are JSON; use json_each() or json_extract() to look inside them
6. Alias computed columns
7. Reply with the SQL only, no explanation and no markdown

SQL Query:
`

func queryAnalysisPrompt(query, context string) string {
	return fmt.Sprintf(queryAnalysisTemplate, context, query)
}

func callSummaryPrompt(filename string, participants []string, transcript string) string {
	return fmt.Sprintf(callSummaryTemplate, filename, strings.Join(participants, ", "), transcript)
}

func sqlQueryPrompt(requirement string) string {
	return fmt.Sprintf(sqlQueryTemplate, requirement)
}
