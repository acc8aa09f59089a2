package mocks

//go:generate go run github.com/golang/mock/mockgen -destination=mock_key_value_store.go -package=mocks github.com/bionicotaku/lingo-services-takeaways/internal/services KeyValueStore
//go:generate go run github.com/golang/mock/mockgen -destination=mock_text_generator.go -package=mocks github.com/bionicotaku/lingo-services-takeaways/internal/services TextGenerator
//go:generate go run github.com/golang/mock/mockgen -destination=mock_page_fetcher.go -package=mocks github.com/bionicotaku/lingo-services-takeaways/internal/services PageFetcher
//go:generate go run github.com/golang/mock/mockgen -destination=mock_api_key_provider.go -package=mocks github.com/bionicotaku/lingo-services-takeaways/internal/services APIKeyProvider
//go:generate go run github.com/golang/mock/mockgen -destination=mock_outbox_enqueuer.go -package=mocks github.com/bionicotaku/lingo-services-takeaways/internal/services OutboxEnqueuer
