package gate

import "lunabot/internal/domain"

// Reference utterances for each route. These are embedded once at init and
// every inbound message is scored against them.

var ignoreUtterances = []string{
	"ok", "okay", "k", "kk", "okok",
	"hmm", "hm", "hmmm",
	"lol", "lmao", "lmfao", "haha", "hahaha",
	"yes", "no", "yep", "nope", "nah", "ye", "yeh",
	"nice", "cool", "bet", "aight", "alright",
	"damn", "dope", "sick", "based",
	"fr", "ong", "facts",
	"💀", "😂", "🔥", "👍", "👎", "😭", "❤️",
	".", "..", "...",
	"gg", "ez", "wp",
}

var chitchatUtterances = []string{
	"hi", "hello", "hey", "yo", "sup",
	"good morning", "gm", "morning",
	"good night", "gn", "night",
	"good afternoon", "good evening",
	"how are you", "how are you doing",
	"whats up", "what's up", "wassup",
	"doing what",
	"thanks", "thank you", "thx", "ty",
	"bye", "goodbye", "see you", "see ya",
	"later", "peace",
}

var llmRequiredUtterances = []string{
	"what do you think about",
	"explain this", "explain",
	"why is", "why",
	"how does", "how to",
	"tell me about",
	"can you help me",
	"what should I do",
	"do you know",
	"I have a question",
	"what happened",
	"have you ever",
	"I think that",
	"let's talk about",
	"I need advice",
	"what is your opinion",
	"can you explain",
	"I disagree",
	"that's interesting because",
	"have you heard about",
	"I'm confused about",
	"what's the difference between",
	"roast me",
	"tell me a joke",
	"recommend me something",
}

func defaultUtterances() map[domain.Route][]string {
	return map[domain.Route][]string{
		domain.RouteIgnore:   ignoreUtterances,
		domain.RouteChitchat: chitchatUtterances,
		domain.RouteLLM:      llmRequiredUtterances,
	}
}
