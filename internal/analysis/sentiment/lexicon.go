package sentiment

// Valences on the usual -4..+4 scale. Tuned for customer reviews of
// restaurants, shops, gyms, salons and hotels.
var defaultLexicon = map[string]float64{
	// positive
	"amazing": 2.8, "awesome": 3.1, "beautiful": 2.9, "best": 3.2, "brilliant": 2.8,
	"calm": 1.3, "charming": 2.2, "clean": 1.7, "comfortable": 1.8, "comfy": 1.6,
	"cozy": 1.8, "delicious": 2.7, "delightful": 2.8, "efficient": 1.8, "enjoy": 2.2,
	"enjoyed": 2.3, "excellent": 3.2, "fantastic": 2.6, "fast": 1.2, "favorite": 2.0,
	"fine": 0.8, "fresh": 1.3, "friendly": 2.2, "fun": 2.3, "glad": 2.0,
	"good": 1.9, "gorgeous": 3.0, "great": 3.1, "happy": 2.7, "helpful": 1.9,
	"impressed": 2.1, "kind": 2.4, "like": 1.5, "liked": 1.8, "love": 3.2,
	"loved": 2.9, "lovely": 2.8, "nice": 1.8, "perfect": 2.7, "pleasant": 2.3,
	"polite": 1.9, "professional": 1.5, "quick": 1.0, "recommend": 1.5, "relaxing": 2.2,
	"reliable": 1.9, "smooth": 1.3, "spotless": 2.2, "superb": 3.1, "sweet": 2.0,
	"tasty": 2.0, "thank": 1.5, "thanks": 1.9, "tidy": 1.4, "welcoming": 2.1,
	"wonderful": 2.7, "worth": 0.9, "yummy": 2.4, "vibe": 0.6, "cheerful": 2.5,
	"attentive": 1.6, "generous": 2.3, "satisfied": 1.8, "outstanding": 3.0, "warm": 1.0,

	// negative
	"angry": -2.3, "annoyed": -1.6, "annoying": -1.8, "awful": -2.0, "bad": -2.5,
	"bland": -1.2, "boring": -1.3, "broken": -1.8, "burnt": -1.5, "careless": -1.5,
	"chaotic": -1.8, "cold": -0.9, "complain": -1.3, "complaint": -1.2, "cramped": -1.3,
	"crowded": -1.1, "dirty": -1.9, "disappointed": -1.9, "disappointing": -2.2, "disgusting": -2.4,
	"dreadful": -2.6, "expensive": -1.0, "filthy": -2.6, "forever": -0.6, "frustrated": -2.0,
	"frustrating": -1.9, "gross": -2.1, "hate": -2.7, "hated": -3.2, "horrible": -2.5,
	"ignored": -1.5, "inedible": -2.2, "lazy": -1.5, "late": -1.0, "lousy": -2.5,
	"mess": -1.5, "messy": -1.5, "mediocre": -1.0, "noisy": -1.1, "overpriced": -1.5,
	"pathetic": -2.7, "poor": -2.1, "problem": -1.7, "rude": -2.0, "sad": -2.1,
	"slow": -1.2, "smell": -0.8, "smelly": -1.7, "stale": -1.5, "sticky": -0.8,
	"stinks": -1.9, "terrible": -2.1, "unfriendly": -2.0, "unhappy": -1.8, "unprofessional": -1.9,
	"upset": -1.6, "waited": -0.5, "waiting": -0.5, "wait": -0.4, "waste": -1.8,
	"wasted": -2.2, "worse": -2.1, "worst": -3.1, "wrong": -2.1, "unacceptable": -2.0,
	"cancelled": -1.0, "canceled": -1.0, "overcooked": -1.4, "undercooked": -1.4, "greasy": -1.2,
}

// Intensifiers are positive, dampeners negative.
var defaultBoosters = map[string]float64{
	"absolutely": boosterIncr, "completely": boosterIncr, "extremely": boosterIncr,
	"incredibly": boosterIncr, "really": boosterIncr, "so": boosterIncr,
	"super": boosterIncr, "totally": boosterIncr, "very": boosterIncr,
	"way": boosterIncr, "too": boosterIncr, "most": boosterIncr, "such": boosterIncr,
	"barely": -boosterIncr, "hardly": -boosterIncr, "kinda": -boosterIncr,
	"slightly": -boosterIncr, "somewhat": -boosterIncr, "marginally": -boosterIncr,
	"little": -boosterIncr, "partly": -boosterIncr,
}

var defaultNegators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "nothing": {}, "nobody": {}, "none": {},
	"neither": {}, "nor": {}, "nowhere": {}, "without": {}, "cannot": {},
	"dont": {}, "didnt": {}, "wasnt": {}, "isnt": {}, "arent": {}, "wont": {},
	"cant": {}, "couldnt": {}, "shouldnt": {}, "wouldnt": {}, "aint": {},
}
