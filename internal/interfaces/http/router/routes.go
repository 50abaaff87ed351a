package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由，limit 只作用于生成接口
func RegisterV1Routes(v1 *gin.RouterGroup, h *Handlers, limit gin.HandlerFunc) {
	// 场景
	scenarios := v1.Group("/scenarios")
	{
		scenarios.GET("", h.Scenario.List)
		scenarios.POST("", h.Scenario.Create)
		scenarios.GET("/:id", h.Scenario.Get)
		scenarios.PUT("/:id", h.Scenario.Update)
		scenarios.DELETE("/:id", h.Scenario.Delete)
	}

	// 角色库
	characters := v1.Group("/characters")
	{
		characters.GET("", h.Character.List)
		characters.POST("", h.Character.Create)
		characters.GET("/:id", h.Character.Get)
		characters.PUT("/:id", h.Character.Update)
		characters.DELETE("/:id", h.Character.Delete)
	}

	// 故事
	stories := v1.Group("/stories")
	{
		stories.GET("", h.Story.List)
		stories.POST("", h.Story.Create)
		stories.GET("/:id", h.Story.Get)
		stories.PUT("/:id", h.Story.Update)
		stories.DELETE("/:id", h.Story.Delete)

		// 故事角色表
		stories.GET("/:id/characters", h.Story.ListCharacters)
		stories.POST("/:id/characters", h.Story.AddCharacter)
		stories.DELETE("/:id/characters/:characterId", h.Story.RemoveCharacter)

		// 剧集
		stories.GET("/:id/episodes", h.Episode.List)
		stories.POST("/:id/episodes/generate", limit, h.Generation.Generate) // SSE
		stories.GET("/:id/episodes/generate/ws", limit, h.Generation.GenerateWS)
		stories.GET("/:id/episodes/:number", h.Episode.Get)
		stories.DELETE("/:id/episodes/:number", h.Episode.Delete)

		// 谱系
		stories.POST("/:id/fork", h.Story.Fork)
		stories.GET("/:id/tree", h.Story.Tree)
	}

	// 剧集语音
	v1.POST("/episodes/:id/audio", h.Audio.Request)

	// 后端管理
	providers := v1.Group("/providers")
	{
		providers.GET("/llm", h.Provider.ListLLM)
		providers.POST("/llm", h.Provider.CreateLLM)
		providers.GET("/llm/:id", h.Provider.GetLLM)
		providers.PUT("/llm/:id", h.Provider.UpdateLLM)
		providers.DELETE("/llm/:id", h.Provider.DeleteLLM)
		providers.GET("/llm/:id/models", h.Provider.ListModels)
		providers.GET("/llm/:id/health", h.Provider.Health)

		providers.GET("/tts", h.Provider.ListTTS)
		providers.POST("/tts", h.Provider.CreateTTS)
		providers.GET("/tts/:id", h.Provider.GetTTS)
		providers.PUT("/tts/:id", h.Provider.UpdateTTS)
		providers.DELETE("/tts/:id", h.Provider.DeleteTTS)
		providers.GET("/tts/:id/voices", h.Audio.Voices)
		providers.POST("/tts/:id/test", h.Audio.TestProvider)
	}

	// 即时语音合成
	v1.POST("/tts/generate", h.Audio.Speak)

	// 快捷引导
	buttons := v1.Group("/speed-buttons")
	{
		buttons.GET("", h.SpeedButton.List)
		buttons.POST("", h.SpeedButton.Create)
		buttons.POST("/reorder", h.SpeedButton.Reorder)
		buttons.GET("/:id", h.SpeedButton.Get)
		buttons.PUT("/:id", h.SpeedButton.Update)
		buttons.DELETE("/:id", h.SpeedButton.Delete)
	}
}
