package core

type AppConfig interface {
	GetRuntimePath() string
	GetDatabasePath() string
	GetContextWindowSize() int
	GetContextBudgetChars() int
}

type PromptConfig interface {
	GetSystemPath() string
	GetModesPath() string
}
