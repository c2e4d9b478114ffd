package keyword

// Default stop-word tables. These mirror the curated lists the help-desk
// operators tuned; operators can override them via a yaml table.

var defaultKoreanStopwords = []string{
	"그리고", "또한", "또는", "그런데", "하지만", "그러나", "따라서",
	"그래서", "그러면", "이것", "그것", "저것", "이런", "그런", "저런",
	"이렇게", "그렇게", "저렇게", "대해", "대한", "대해서", "대하여",
	"알려줘", "알려주세요", "알려주", "해줘", "해주세요", "해주",
	"보여줘", "보여주세요", "보여주", "말해줘", "말해주세요",
	"설명해줘", "설명해주세요", "있습니다", "있어요", "없습니다", "없어요",
}

var defaultEnglishStopwords = []string{
	"the", "and", "or", "but", "so", "then", "this", "that", "with",
	"for", "are", "was", "were", "been", "have", "has", "had", "will",
	"would", "could", "should", "please", "kindly", "thanks", "thank",
	"tell", "show", "explain", "help", "need", "want", "know",
}
