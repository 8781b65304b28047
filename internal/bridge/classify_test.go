package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyNewFeaturePrefix(t *testing.T) {
	assert.Equal(t, ClassNewFeature, Classify(Message{Text: "feature: add dark mode"}, false))
	assert.Equal(t, ClassNewFeature, Classify(Message{Text: "Enhancement: add dark mode"}, false))
}

func TestClassifyNewDefectPrefix(t *testing.T) {
	assert.Equal(t, ClassNewDefect, Classify(Message{Text: "defect: login broken"}, false))
	assert.Equal(t, ClassNewDefect, Classify(Message{Text: "bug: login broken"}, false))
}

func TestClassifyControlWords(t *testing.T) {
	assert.Equal(t, ClassControlStop, Classify(Message{Text: "stop"}, false))
	assert.Equal(t, ClassControlStop, Classify(Message{Text: "pause"}, false))
	assert.Equal(t, ClassControlSkip, Classify(Message{Text: "skip"}, false))
}

func TestClassifyInfoRequest(t *testing.T) {
	assert.Equal(t, ClassInfoRequest, Classify(Message{Text: "status"}, false))
	assert.Equal(t, ClassInfoRequest, Classify(Message{Text: "status?"}, false))
}

func TestClassifyQuestion(t *testing.T) {
	assert.Equal(t, ClassQuestion, Classify(Message{Text: "is the plan done"}, false))
	assert.Equal(t, ClassQuestion, Classify(Message{Text: "will this ship today?"}, false))
}

func TestClassifyQuestionAnswerWhenInSuspensionThread(t *testing.T) {
	assert.Equal(t, ClassQuestionAnswer, Classify(Message{Text: "use postgres"}, true))
}

func TestClassifyAcknowledgementFallback(t *testing.T) {
	assert.Equal(t, ClassAcknowledgement, Classify(Message{Text: "thanks!"}, false))
}

func TestStripPrefixRemovesClassificationTag(t *testing.T) {
	assert.Equal(t, "add dark mode", StripPrefix("feature: add dark mode"))
}
