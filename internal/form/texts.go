package form

// Button labels. Incoming text is matched against them verbatim.
const (
	BtnFillForm    = "📝 Заполнить анкету"
	BtnPartnership = "🤝 Партнерство"
	BtnSupport     = "🆘 Поддержка"
	BtnRestart     = "🔄 Перезапустить бота"

	BtnReferral   = "🔗 Реферальная программа"
	BtnRecruiters = "👥 Для рекрутеров"
	BtnBizDev     = "🚀 BizDev"
	BtnBack       = "🔙 Назад"
	BtnHome       = "🏠 Меню"

	BtnWriteManager = "📨 Написать менеджеру"
)

// Replies.
const (
	TextWelcome          = "Добро пожаловать! Выберите опцию:"
	TextAlreadySubmitted = "❗ Вы уже заполняли анкету."
	TextChoosePartner    = "Выберите тип партнерства:"
	TextSupport          = "Свяжитесь с нашим менеджером:"
	TextBackToMenu       = "Вы вернулись в главное меню."
	TextFirstQuestion    = "Вы на первом вопросе."
	TextRepeatAnswer     = "Повторно введите ответ."
	TextSaved            = "✅ Анкета сохранена!"
	TextCancelled        = "Действие отменено"
	TextChooseOption     = "Пожалуйста, выберите вариант на клавиатуре."
	TextStartHint        = "Отправьте /start, чтобы открыть меню."
	TextUnknownCommand   = "Неизвестная команда. Доступны /start и /cancel."
	TextFailure          = "⚠️ Не удалось обработать запрос. Попробуйте ещё раз позже."

	TextReferral   = "Реферальная программа: ..."
	TextRecruiters = "Информация для рекрутеров: ..."
	TextBizDev     = "BizDev сотрудничество: ..."
)

// DefaultSupportURL is the manager contact opened by the support button.
const DefaultSupportURL = "https://t.me/zhuratop_trep"

// DefaultPrompts are the questionnaire prompts. Questions 2-5 share one prompt.
var DefaultPrompts = [QuestionCount]string{
	"Как вас зовут?",
	"Ваш опыт работы?",
	"Ваш опыт работы?",
	"Ваш опыт работы?",
	"Ваш опыт работы?",
}

var (
	mainMenuRows = [][]string{
		{BtnFillForm},
		{BtnPartnership},
		{BtnSupport},
		{BtnRestart},
	}
	partnershipRows = [][]string{
		{BtnReferral},
		{BtnRecruiters},
		{BtnBizDev},
		{BtnBack},
	}
	navRows = [][]string{
		{BtnBack, BtnHome},
	}

	partnershipInfo = map[string]string{
		BtnReferral:   TextReferral,
		BtnRecruiters: TextRecruiters,
		BtnBizDev:     TextBizDev,
	}
)
