package main

import (
	"github.com/joho/godotenv"
	"github.com/pixloft/go-backend/internal/app"
)

//	@title			PixLoft Image Uploader API
//	@version		1.0
//	@description	Сервис загрузки изображений с выдачей публичных ссылок
//	@host			localhost:8080
//	@BasePath		/api/v1
func main() {
	// .env нужен только для локального запуска, в контейнере переменные
	// приходят из окружения.
	_ = godotenv.Load()

	app.Run()
}
