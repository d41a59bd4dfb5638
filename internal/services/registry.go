package services

// ServiceContainer bundles the constructed services for handler wiring.
type ServiceContainer struct {
	EnrollmentService     EnrollmentService
	TransactionService    TransactionService
	ReconciliationService ReconciliationService
	CancellationService   CancellationService
}
