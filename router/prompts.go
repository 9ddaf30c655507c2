package router

const classifierSystem = `You are an intent classifier for a sales call analysis system.
You have access to four tools:

1. RAG (Retrieval-Augmented Generation): For answering questions about call content, finding specific information in transcripts, analyzing conversations
2. SUMMARIZE: For generating summaries of specific calls or transcripts
3. SQL: For database queries, analytics, aggregations, counting records, finding patterns across multiple calls
4. INGEST: For ingesting/importing new call transcript files into the system

Analyze the user's query and respond with EXACTLY ONE of these four words: RAG, SUMMARIZE, SQL, or INGEST

Examples:
- "What objections were raised in the demo call?" → RAG
- "Summarize the pricing call 5_demo_call.txt" → SUMMARIZE
- "How many calls do we have in the database?" → SQL
- "Ingest the new call file 5_demo_call.txt" → INGEST
- "What concerns did customers raise about pricing?" → RAG
- "Give me a summary of transcript file 5_pricing_call.txt" → SUMMARIZE
- "Which calls had the most objections?" → SQL
- "Import 6_pricing_call.txt into the system" → INGEST
- "What did the customer say about our product features?" → RAG
- "Create a summary for the negotiation call 5_negotiation.txt" → SUMMARIZE
- "Show me all calls from this month" → SQL
- "Add the file new_call.txt to the database" → INGEST`

const (
	summarizeClarification = "Please specify which call you'd like me to summarize. You can reference by filename (e.g., '1_demo_call.txt') or call ID."
	ingestClarification    = "Please specify which file you'd like me to ingest. You can reference by filename (e.g., '5_new_call.txt')."
	intentClarification    = "I'm not sure what you're asking for. You can ask about what was said on calls, ask for a summary of a call such as '1_demo_call.txt', ask a question about call counts or trends, or name a transcript file to ingest."
	tryAgainText           = "The language service did not respond in time or is unavailable. Please try again in a moment."
	unsafeQueryText        = "I can only run read-only queries against the call database, and the query generated for that request was not one. Please rephrase the question."
	callNotFoundText       = "I couldn't find that call. You can reference it by filename (e.g., '1_demo_call.txt') or call ID."
)
