package domain

// Actor описывает автора изменения для журнала аудита.
type Actor struct {
	UID   string
	Email string
}

const (
	// Анонимный покупатель витрины.
	PublicActorUID = "public"
	// Планировщик фоновых задач.
	CronActorUID = "cron"
	// DefaultClientIP используется, когда адрес клиента неизвестен.
	DefaultClientIP = "0.0.0.0"
	// DefaultUserAgent используется, когда клиент не прислал User-Agent.
	DefaultUserAgent = "unknown"
)

// ActorContext передаётся явно в каждую операцию ядра: кто действует и откуда.
type ActorContext struct {
	Actor     Actor
	IP        string
	UserAgent string
	IsAdmin   bool
}

// PublicActor создаёт контекст покупателя без аутентификации.
func PublicActor(ip, userAgent string) ActorContext {
	return ActorContext{
		Actor:     Actor{UID: PublicActorUID},
		IP:        ip,
		UserAgent: userAgent,
	}
}

// CronActor создаёт контекст фоновой очистки резервов.
func CronActor() ActorContext {
	return ActorContext{
		Actor:     Actor{UID: CronActorUID, Email: "cron@local"},
		IP:        "cron",
		UserAgent: "cron",
	}
}

// AdminActor создаёт контекст аутентифицированного администратора.
func AdminActor(uid, email, ip, userAgent string) ActorContext {
	return ActorContext{
		Actor:     Actor{UID: uid, Email: email},
		IP:        ip,
		UserAgent: userAgent,
		IsAdmin:   true,
	}
}

// ClientIP возвращает адрес клиента или DefaultClientIP.
func (a ActorContext) ClientIP() string {
	if a.IP == "" {
		return DefaultClientIP
	}
	return a.IP
}

// ClientUserAgent возвращает User-Agent клиента или DefaultUserAgent.
func (a ActorContext) ClientUserAgent() string {
	if a.UserAgent == "" {
		return DefaultUserAgent
	}
	return a.UserAgent
}

// Meta возвращает метаданные запроса для аудита.
func (a ActorContext) Meta() map[string]any {
	return map[string]any{"ip": a.ClientIP(), "userAgent": a.ClientUserAgent()}
}
