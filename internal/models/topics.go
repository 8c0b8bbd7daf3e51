package models

// DefaultTopicDescriptions holds the research question behind each topic
var DefaultTopicDescriptions = map[string]string{
	"topic1":  "How can we incorporate existing knowledge bases effectively into LLMs",
	"topic2":  "Do these models enhance scientific understanding (of language, cognition, or deep learning technology)? In what ways?",
	"topic3":  "How reliably do the current generation of LLMs perform on NLP tasks and applications",
	"topic4":  "How is linguistic diversity covered by these LLMs?",
	"topic5":  "What are the different systemic failures of such LLMs and recovery strategies and methodologies?",
	"topic6":  "How can we evaluate the performance of Large Language Models (LLMs) intrinsically (with no downstream application involved)?",
	"topic7":  "How replicable is the performance of Large Language Models (LLMs) in both NLP research and real-life applications?",
	"topic8":  "How do Large Language Models (LLMs) capture world knowledge?",
	"topic9":  "What are the opportunities Large Language Models (LLMs) offer to NLP research?",
	"topic10": "How can Large Language Models (LLMs) influence how NLP research is done in the future?",
	"topic11": "What are the different ethical and FATE-related considerations regarding the design and use of Large Language Models (LLMs)?",
}
