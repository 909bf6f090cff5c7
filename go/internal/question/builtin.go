package question

import "github.com/suslab/spyroom/go/internal/models"

// builtinQuestions is the offline question set backing the fallback
// library. IDs are stable so dedup history survives restarts.
var builtinQuestions = []models.Question{
	{ID: "q001", Text: "Would you survive a week without your phone?", Type: models.QuestionYesNo, FamilyFriendly: true},
	{ID: "q002", Text: "Have you ever pretended to know a song at a concert?", Type: models.QuestionYesNo, FamilyFriendly: true},
	{ID: "q003", Text: "Would you eat pineapple on pizza?", Type: models.QuestionYesNo, FamilyFriendly: true},
	{ID: "q004", Text: "Have you ever laughed at the wrong moment at a funeral or ceremony?", Type: models.QuestionYesNo, FamilyFriendly: false},
	{ID: "q005", Text: "Would you go back in time if you could never return?", Type: models.QuestionYesNo, FamilyFriendly: true},
	{ID: "q006", Text: "Have you ever blamed a sibling for something you did?", Type: models.QuestionYesNo, FamilyFriendly: true},
	{ID: "q007", Text: "Would you sing karaoke in front of everyone here?", Type: models.QuestionYesNo, FamilyFriendly: true},
	{ID: "q008", Text: "Have you ever sent a message to the wrong person?", Type: models.QuestionYesNo, FamilyFriendly: true},
	{ID: "q101", Text: "How likely are you to cry during a sad movie?", Type: models.QuestionScale4, FamilyFriendly: true},
	{ID: "q102", Text: "How likely are you to talk your way out of a speeding ticket?", Type: models.QuestionScale4, FamilyFriendly: true},
	{ID: "q103", Text: "How likely are you to eat dessert before dinner?", Type: models.QuestionScale4, FamilyFriendly: true},
	{ID: "q104", Text: "How likely are you to ghost someone after a bad date?", Type: models.QuestionScale4, FamilyFriendly: false},
	{ID: "q105", Text: "How likely are you to adopt a stray animal on the spot?", Type: models.QuestionScale4, FamilyFriendly: true},
	{ID: "q106", Text: "How likely are you to check your ex's profile?", Type: models.QuestionScale4, FamilyFriendly: false},
	{ID: "q107", Text: "How likely are you to win a staring contest?", Type: models.QuestionScale4, FamilyFriendly: true},
	{ID: "q201", Text: "Who here would last longest on a desert island?", Type: models.QuestionPlayers, FamilyFriendly: true},
	{ID: "q202", Text: "Who here is most likely to become famous?", Type: models.QuestionPlayers, FamilyFriendly: true},
	{ID: "q203", Text: "Who here would spend a lottery win the fastest?", Type: models.QuestionPlayers, FamilyFriendly: true},
	{ID: "q204", Text: "Who here is most likely to have a secret tattoo?", Type: models.QuestionPlayers, FamilyFriendly: false},
	{ID: "q205", Text: "Who here would make the best teacher?", Type: models.QuestionPlayers, FamilyFriendly: true},
	{ID: "q206", Text: "Who here is most likely to forget their own birthday?", Type: models.QuestionPlayers, FamilyFriendly: true},
	{ID: "q207", Text: "Who here would win a cooking competition?", Type: models.QuestionPlayers, FamilyFriendly: true},
	{ID: "q208", Text: "Who here is most likely to text during this game?", Type: models.QuestionPlayers, FamilyFriendly: true},
}
