package service

import (
	"context"
	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/repository"
	"school_quiz_backend/internal/util"
	"strconv"
	"time"
)

type QuizService struct {
	Repo     repository.QuizRepository
	Cache    Cache
	Notifier Notifier
	TTLs     CacheTTLs
}

func NewQuizService(repo repository.QuizRepository, cache Cache, notifier Notifier, ttls CacheTTLs) *QuizService {
	return &QuizService{Repo: repo, Cache: cache, Notifier: notifier, TTLs: ttls}
}

/* =========================================================
   请求结构
========================================================= */

type ClozeBlankReq struct {
	BlankNumber   int      `json:"blankNumber"`
	Options       []string `json:"options" binding:"required"`
	CorrectOption string   `json:"correctOption" binding:"required"`
	Points        int      `json:"points"`
}

type QuestionReq struct {
	ID             string             `json:"id"`
	Type           model.QuestionType `json:"type" binding:"required"`
	Text           string             `json:"text" binding:"required"`
	Points         int                `json:"points"`
	Options        []string           `json:"options"`
	CorrectOption  string             `json:"correctOption"`
	CorrectBoolean *bool              `json:"correctBoolean"`
	Blanks         []ClozeBlankReq    `json:"blanks"`
}

type SectionReq struct {
	Instruction string        `json:"instruction"`
	Questions   []QuestionReq `json:"questions"`
}

type QuizReq struct {
	Title            *string        `json:"title"`
	Description      *string        `json:"description"`
	ClassID          *string        `json:"classId"`
	Questions        *[]QuestionReq `json:"questions"`
	Sections         *[]SectionReq  `json:"sections"`
	ShuffleQuestions *bool          `json:"shuffleQuestions"`
	ShuffleOptions   *bool          `json:"shuffleOptions"`
	TimeLimit        *int           `json:"timeLimit"`
	StartTime        *time.Time     `json:"startTime"`
	DueDate          *time.Time     `json:"dueDate"`
	MaxAttempts      *int           `json:"maxAttempts"`
}

/* =========================================================
   校验与构造
========================================================= */

func buildQuestion(req QuestionReq) (model.Question, error) {
	q := model.Question{
		ID:             req.ID,
		Type:           req.Type,
		Text:           req.Text,
		Points:         req.Points,
		Options:        req.Options,
		CorrectOption:  req.CorrectOption,
		CorrectBoolean: req.CorrectBoolean,
	}
	if q.ID == "" {
		q.ID = model.GenerateUUID()
	}
	if !q.Type.Valid() {
		return q, util.NewValidationError("unknown question type: %s", req.Type)
	}

	switch q.Type {
	case model.MultipleChoice:
		if len(q.Options) < 2 {
			return q, util.NewValidationError("multiple choice question %q needs at least 2 options", q.Text)
		}
		if !contains(q.Options, q.CorrectOption) {
			return q, util.NewValidationError("correct option of question %q is not among its options", q.Text)
		}
		if q.Points <= 0 {
			q.Points = model.DefaultObjectivePoints
		}
	case model.TrueFalse:
		if q.CorrectBoolean == nil {
			return q, util.NewValidationError("true/false question %q has no correct boolean", q.Text)
		}
		if q.Points <= 0 {
			q.Points = model.DefaultObjectivePoints
		}
	case model.Cloze:
		if len(req.Blanks) == 0 {
			return q, util.NewValidationError("cloze question %q must declare at least one blank", q.Text)
		}
		q.Blanks = make([]model.ClozeBlank, len(req.Blanks))
		for i, b := range req.Blanks {
			blank := model.ClozeBlank{
				BlankNumber:   b.BlankNumber,
				Options:       b.Options,
				CorrectOption: b.CorrectOption,
				Points:        b.Points,
			}
			if blank.BlankNumber <= 0 {
				blank.BlankNumber = i + 1
			}
			if len(blank.Options) < 2 {
				return q, util.NewValidationError("cloze blank %d of question %q needs at least 2 options", blank.BlankNumber, q.Text)
			}
			if !contains(blank.Options, blank.CorrectOption) {
				return q, util.NewValidationError("cloze blank %d of question %q: correct option not among options", blank.BlankNumber, q.Text)
			}
			if blank.Points <= 0 {
				blank.Points = model.DefaultObjectivePoints
			}
			q.Blanks[i] = blank
		}
	case model.Essay, model.ShortAnswer:
		if q.Points > model.ManualPointsMax {
			return q, util.NewValidationError("points of question %q exceed the manual grading max of %d", q.Text, model.ManualPointsMax)
		}
		// 未设分值的主观题在评分阶段按满分 5 计入总分
	}
	return q, nil
}

// buildQuestionSet 要求 flat 与 sections 恰好一个非空
func buildQuestionSet(req QuizReq, existing *model.QuestionSet) (model.QuestionSet, error) {
	hasFlat := req.Questions != nil && len(*req.Questions) > 0
	hasSections := req.Sections != nil && len(*req.Sections) > 0

	if hasFlat && hasSections {
		return model.QuestionSet{}, util.NewValidationError("quiz cannot carry both flat questions and sections")
	}
	if !hasFlat && !hasSections {
		if existing != nil && req.Questions == nil && req.Sections == nil {
			return *existing, nil
		}
		return model.QuestionSet{}, util.NewValidationError("quiz must carry either flat questions or sections")
	}

	if hasFlat {
		questions := make([]model.Question, len(*req.Questions))
		for i, qr := range *req.Questions {
			q, err := buildQuestion(qr)
			if err != nil {
				return model.QuestionSet{}, err
			}
			questions[i] = q
		}
		// 切换结构时另一字段随之清空
		return model.QuestionSet{Mode: model.QuestionSetFlat, Questions: questions}, nil
	}

	sections := make([]model.Section, len(*req.Sections))
	for i, sr := range *req.Sections {
		if len(sr.Questions) == 0 {
			return model.QuestionSet{}, util.NewValidationError("section %d has no questions", i+1)
		}
		questions := make([]model.Question, len(sr.Questions))
		for j, qr := range sr.Questions {
			q, err := buildQuestion(qr)
			if err != nil {
				return model.QuestionSet{}, err
			}
			questions[j] = q
		}
		sections[i] = model.Section{Instruction: sr.Instruction, Questions: questions}
	}
	return model.QuestionSet{Mode: model.QuestionSetSectioned, Sections: sections}, nil
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

/* =========================================================
   展平：每个判分单元一条。cloze 的每个空展为独立单元，分值
   按空单独计，父题本身不占分，避免重复计分。
========================================================= */

type FlatUnit struct {
	QuestionID    string
	BlankNumber   *int
	Type          model.QuestionType
	CorrectAnswer string
	Points        int
}

// AnswerKey 答案映射的 key：普通题用题目ID，cloze 空带空序号
func AnswerKey(questionID string, blankNumber *int) string {
	if blankNumber == nil {
		return questionID
	}
	return questionID + "-" + strconv.Itoa(*blankNumber)
}

func allQuestions(qs model.QuestionSet) []model.Question {
	if qs.Mode == model.QuestionSetSectioned {
		var questions []model.Question
		for _, sec := range qs.Sections {
			questions = append(questions, sec.Questions...)
		}
		return questions
	}
	return qs.Questions
}

func FlattenQuestionSet(qs model.QuestionSet) []FlatUnit {
	var units []FlatUnit
	for _, q := range allQuestions(qs) {
		switch q.Type {
		case model.MultipleChoice:
			units = append(units, FlatUnit{
				QuestionID:    q.ID,
				Type:          q.Type,
				CorrectAnswer: q.CorrectOption,
				Points:        pointsOrDefault(q.Points, model.DefaultObjectivePoints),
			})
		case model.TrueFalse:
			correct := "false"
			if q.CorrectBoolean != nil && *q.CorrectBoolean {
				correct = "true"
			}
			units = append(units, FlatUnit{
				QuestionID:    q.ID,
				Type:          q.Type,
				CorrectAnswer: correct,
				Points:        pointsOrDefault(q.Points, model.DefaultObjectivePoints),
			})
		case model.Cloze:
			for _, b := range q.Blanks {
				n := b.BlankNumber
				units = append(units, FlatUnit{
					QuestionID:    q.ID,
					BlankNumber:   &n,
					Type:          model.Cloze,
					CorrectAnswer: b.CorrectOption,
					Points:        pointsOrDefault(b.Points, model.DefaultObjectivePoints),
				})
			}
		case model.Essay, model.ShortAnswer:
			points := q.Points
			if points <= 0 || points > model.ManualPointsMax {
				points = model.ManualPointsMax
			}
			units = append(units, FlatUnit{
				QuestionID: q.ID,
				Type:       q.Type,
				Points:     points,
			})
		}
	}
	return units
}

func pointsOrDefault(points, def int) int {
	if points <= 0 {
		return def
	}
	return points
}

func countAutoGradable(units []FlatUnit) int {
	count := 0
	for _, u := range units {
		if u.Type.AutoGradable() {
			count++
		}
	}
	return count
}

/* =========================================================
   目录操作
========================================================= */

func (s *QuizService) CreateQuiz(ctx context.Context, teacherID, schoolID string, req QuizReq) (*model.Quiz, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, util.NewValidationError("title is required")
	}
	if req.ClassID == nil || *req.ClassID == "" {
		return nil, util.NewValidationError("classId is required")
	}

	questionSet, err := buildQuestionSet(req, nil)
	if err != nil {
		return nil, err
	}

	quiz := &model.Quiz{
		SchoolID:    schoolID,
		ClassID:     *req.ClassID,
		TeacherID:   teacherID,
		Title:       *req.Title,
		QuestionSet: questionSet,
	}
	applyQuizFlags(quiz, req)

	if err := s.Repo.Create(quiz); err != nil {
		return nil, err
	}

	s.invalidateQuiz(ctx, quiz)
	return quiz, nil
}

func (s *QuizService) UpdateQuiz(ctx context.Context, quizID, callerID string, req QuizReq) (*model.Quiz, error) {
	quiz, err := s.Repo.FindByID(quizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, util.NewNotFoundError("quiz")
	}
	// 发布后仅出题教师本人可改
	if quiz.IsPublished && quiz.TeacherID != callerID {
		return nil, util.ErrPermissionDenied
	}

	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.ClassID != nil {
		quiz.ClassID = *req.ClassID
	}
	questionSet, err := buildQuestionSet(req, &quiz.QuestionSet)
	if err != nil {
		return nil, err
	}
	quiz.QuestionSet = questionSet
	applyQuizFlags(quiz, req)

	if err := s.Repo.Save(quiz); err != nil {
		return nil, err
	}

	s.invalidateQuiz(ctx, quiz)
	return quiz, nil
}

func applyQuizFlags(quiz *model.Quiz, req QuizReq) {
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.ShuffleQuestions != nil {
		quiz.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShuffleOptions != nil {
		quiz.ShuffleOptions = *req.ShuffleOptions
	}
	if req.TimeLimit != nil {
		quiz.TimeLimit = *req.TimeLimit
	}
	if req.StartTime != nil {
		quiz.StartTime = req.StartTime
	}
	if req.DueDate != nil {
		quiz.DueDate = req.DueDate
	}
	if req.MaxAttempts != nil {
		quiz.MaxAttempts = *req.MaxAttempts
	}
}

// PublishQuiz 发布要求至少一个可机器判分的单元，否则整卷只能
// 人工批改、学生交卷后永远拿不到即时结果
func (s *QuizService) PublishQuiz(ctx context.Context, quizID string, publish bool) (*model.Quiz, error) {
	quiz, err := s.Repo.FindByID(quizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, util.NewNotFoundError("quiz")
	}

	var publishedAt *time.Time
	if publish {
		units := FlattenQuestionSet(quiz.QuestionSet)
		if countAutoGradable(units) == 0 {
			return nil, util.NewConflictError("cannot publish a quiz with no auto-gradable questions")
		}
		now := time.Now()
		publishedAt = &now
	}

	if err := s.Repo.SetPublished(quizID, publish, publishedAt); err != nil {
		return nil, err
	}
	quiz.IsPublished = publish
	quiz.PublishedAt = publishedAt

	s.invalidateQuiz(ctx, quiz)

	if publish {
		s.Notifier.NotifyClass(quiz.ClassID, "Quiz published", quiz.Title, model.NotificationPayload{
			"quizId":  quiz.ID,
			"classId": quiz.ClassID,
		})
	}
	return quiz, nil
}

func (s *QuizService) DeleteQuiz(ctx context.Context, quizID, callerID string) error {
	quiz, err := s.Repo.FindByID(quizID)
	if err != nil {
		return err
	}
	if quiz == nil {
		return util.NewNotFoundError("quiz")
	}
	if quiz.TeacherID != callerID {
		return util.ErrPermissionDenied
	}
	if err := s.Repo.Delete(quizID); err != nil {
		return err
	}
	s.invalidateQuiz(ctx, quiz)
	return nil
}

/* =========================================================
   读取（读穿缓存；学生视角剥掉答案）
========================================================= */

func (s *QuizService) GetQuiz(ctx context.Context, quizID string, role model.UserRole) (*model.Quiz, error) {
	key := quizCacheKey(quizID, role.String())
	var cached model.Quiz
	if s.Cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	quiz, err := s.Repo.FindByID(quizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, util.NewNotFoundError("quiz")
	}
	if !role.Privileged() {
		if !quiz.IsPublished {
			return nil, util.ErrQuizNotPublished
		}
		sanitized := *quiz
		sanitized.QuestionSet = stripAnswers(quiz.QuestionSet)
		quiz = &sanitized
	}

	s.Cache.Set(ctx, key, quiz, s.TTLs.Quiz)
	return quiz, nil
}

func (s *QuizService) ListQuizzesForClass(ctx context.Context, schoolID, classID string, role model.UserRole, page, limit int) ([]model.Quiz, int64, error) {
	key := classQuizzesCacheKey(schoolID, classID, role.String(), page, limit)
	var cached quizPage
	if s.Cache.Get(ctx, key, &cached) {
		return cached.Quizzes, cached.Total, nil
	}

	quizzes, total, err := s.Repo.ListByClass(schoolID, classID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	quizzes = sanitizeList(quizzes, role)

	s.Cache.Set(ctx, key, quizPage{Quizzes: quizzes, Total: total}, s.TTLs.List)
	return quizzes, total, nil
}

func (s *QuizService) ListQuizzesForSchool(ctx context.Context, schoolID string, role model.UserRole, page, limit int) ([]model.Quiz, int64, error) {
	key := schoolQuizzesCacheKey(schoolID, role.String(), page, limit)
	var cached quizPage
	if s.Cache.Get(ctx, key, &cached) {
		return cached.Quizzes, cached.Total, nil
	}

	quizzes, total, err := s.Repo.ListBySchool(schoolID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	quizzes = sanitizeList(quizzes, role)

	s.Cache.Set(ctx, key, quizPage{Quizzes: quizzes, Total: total}, s.TTLs.List)
	return quizzes, total, nil
}

type quizPage struct {
	Quizzes []model.Quiz `json:"quizzes"`
	Total   int64        `json:"total"`
}

func sanitizeList(quizzes []model.Quiz, role model.UserRole) []model.Quiz {
	if role.Privileged() {
		return quizzes
	}
	out := make([]model.Quiz, 0, len(quizzes))
	for _, quiz := range quizzes {
		if !quiz.IsPublished {
			continue
		}
		quiz.QuestionSet = stripAnswers(quiz.QuestionSet)
		out = append(out, quiz)
	}
	return out
}

// stripAnswers 去掉标准答案后返回副本，供非特权角色查看
func stripAnswers(qs model.QuestionSet) model.QuestionSet {
	strip := func(questions []model.Question) []model.Question {
		out := make([]model.Question, len(questions))
		for i, q := range questions {
			q.CorrectOption = ""
			q.CorrectBoolean = nil
			if len(q.Blanks) > 0 {
				blanks := make([]model.ClozeBlank, len(q.Blanks))
				for j, b := range q.Blanks {
					b.CorrectOption = ""
					blanks[j] = b
				}
				q.Blanks = blanks
			}
			out[i] = q
		}
		return out
	}

	if qs.Mode == model.QuestionSetSectioned {
		sections := make([]model.Section, len(qs.Sections))
		for i, sec := range qs.Sections {
			sections[i] = model.Section{Instruction: sec.Instruction, Questions: strip(sec.Questions)}
		}
		return model.QuestionSet{Mode: qs.Mode, Sections: sections}
	}
	return model.QuestionSet{Mode: qs.Mode, Questions: strip(qs.Questions)}
}

/* =========================================================
   学生视图：剥答案 + 按学号派生的确定性乱序。同一学生任何时候
   重建视图得到同一顺序，刷新或断线重连不会洗牌。
========================================================= */

func BuildStudentView(quiz *model.Quiz, studentID string) model.QuestionSet {
	base := studentID + quiz.ID
	qs := stripAnswers(quiz.QuestionSet)

	shuffleQuestions := func(questions []model.Question, key string) []model.Question {
		if !quiz.ShuffleQuestions {
			return questions
		}
		order := util.ShuffleIndex(len(questions), key)
		out := make([]model.Question, len(questions))
		for i, idx := range order {
			out[i] = questions[idx]
		}
		return out
	}

	shuffleOptions := func(questions []model.Question) []model.Question {
		if !quiz.ShuffleOptions {
			return questions
		}
		out := make([]model.Question, len(questions))
		for i, q := range questions {
			if len(q.Options) > 0 {
				q.Options = util.ShuffleStrings(q.Options, base+"-options-"+q.ID)
			}
			if len(q.Blanks) > 0 {
				blanks := make([]model.ClozeBlank, len(q.Blanks))
				for j, b := range q.Blanks {
					b.Options = util.ShuffleStrings(b.Options, base+"-cloze-"+q.ID+"-"+strconv.Itoa(b.BlankNumber))
					blanks[j] = b
				}
				q.Blanks = blanks
			}
			out[i] = q
		}
		return out
	}

	if qs.Mode == model.QuestionSetSectioned {
		// 分节保序，只打乱节内题目
		sections := make([]model.Section, len(qs.Sections))
		for i, sec := range qs.Sections {
			questions := shuffleQuestions(sec.Questions, base+"-section-"+strconv.Itoa(i))
			sections[i] = model.Section{Instruction: sec.Instruction, Questions: shuffleOptions(questions)}
		}
		return model.QuestionSet{Mode: qs.Mode, Sections: sections}
	}

	questions := shuffleQuestions(qs.Questions, base)
	return model.QuestionSet{Mode: qs.Mode, Questions: shuffleOptions(questions)}
}

func (s *QuizService) invalidateQuiz(ctx context.Context, quiz *model.Quiz) {
	s.Cache.DeleteByPrefix(ctx, "quiz:def:"+quiz.ID)
	s.Cache.DeleteByPrefix(ctx, "quiz:class:"+quiz.SchoolID+":"+quiz.ClassID)
	s.Cache.DeleteByPrefix(ctx, "quiz:school:"+quiz.SchoolID)
}
