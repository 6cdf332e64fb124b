package services

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"herdmind/models"
)

// QuestionService is read-only access to the question bank. Question content
// management lives outside this service.
type QuestionService struct {
	db *gorm.DB
}

func NewQuestionService(db *gorm.DB) *QuestionService {
	return &QuestionService{db: db}
}

func (s *QuestionService) ListQuestions() ([]models.Question, error) {
	var questions []models.Question
	err := s.db.Order("created_at ASC").Find(&questions).Error
	return questions, err
}

// QuestionsByIDs fetches questions preserving the order of the given ids.
// Unknown ids are skipped, not errors; the caller decides whether the
// resulting count is enough.
func (s *QuestionService) QuestionsByIDs(ids []string) ([]models.Question, error) {
	return questionsByIDs(s.db, ids)
}

func questionsByIDs(db *gorm.DB, ids []string) ([]models.Question, error) {
	var found []models.Question
	if err := db.Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	ordered := make([]models.Question, 0, len(found))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

// SeedDefaultQuestions loads the starter question bank when the table is
// empty, so a fresh deployment has something to play with.
func (s *QuestionService) SeedDefaultQuestions() error {
	var count int64
	if err := s.db.Model(&models.Question{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	questions := []models.Question{
		{
			Text:     "Pick the brunch spot everyone else is picturing",
			Category: "Food & Drinks",
			OptionA:  "Trendy avocado toast café",
			OptionB:  "Bottomless mimosa bistro",
			OptionC:  "Neighborhood diner",
			OptionD:  "Farmers market food truck",
		},
		{
			Text:     "Which city would most players daydream about visiting right now?",
			Category: "Travel",
			OptionA:  "Lisbon",
			OptionB:  "Tokyo",
			OptionC:  "Mexico City",
			OptionD:  "Reykjavík",
		},
		{
			Text:     "Ultimate comfort show the group binges",
			Category: "Entertainment",
			OptionA:  "The Office",
			OptionB:  "Great British Bake Off",
			OptionC:  "Bluey",
			OptionD:  "Friends",
		},
		{
			Text:     "Morning beverage vibe check",
			Category: "Daily Habits",
			OptionA:  "Cold brew with oat milk",
			OptionB:  "Matcha latte",
			OptionC:  "Black coffee",
			OptionD:  "Protein smoothie",
		},
		{
			Text:     "Preferred remote work backdrop",
			Category: "Lifestyle",
			OptionA:  "Minimalist studio",
			OptionB:  "Lush plant jungle",
			OptionC:  "Sunlit beach house",
			OptionD:  "Hip coffee shop",
		},
		{
			Text:     "Pick the sneaker everyone flexes",
			Category: "Fashion",
			OptionA:  "Nike Dunks",
			OptionB:  "Adidas Sambas",
			OptionC:  "New Balance 550s",
			OptionD:  "Veja V-10s",
		},
		{
			Text:     "Which daily habit does this crew brag about?",
			Category: "Habit Tracking",
			OptionA:  "10k steps",
			OptionB:  "Meditation streak",
			OptionC:  "Wordle in 3",
			OptionD:  "Cold plunges",
		},
		{
			Text:     "Preferred group chat reaction style",
			Category: "Social",
			OptionA:  "All emojis",
			OptionB:  "Voice notes",
			OptionC:  "Memes & gifs",
			OptionD:  "Short replies",
		},
	}

	if err := s.db.Create(&questions).Error; err != nil {
		return err
	}
	log.Info().Int("count", len(questions)).Msg("seeded default question bank")
	return nil
}
