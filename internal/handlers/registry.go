package handlers

type AppHandlers struct {
	ClientHandler      *ClientHandler
	ClassHandler       *ClassHandler
	EnrollmentHandler  *EnrollmentHandler
	TransactionHandler *TransactionHandler
	WebhookHandler     *WebhookHandler
}
