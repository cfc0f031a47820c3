// File: cmd/seed/main.go
// Seeds a demo tenant with a small flow graph and two products, so the full
// buy path can be exercised end to end on a fresh database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"chatbot-commerce/internal/config"
	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/repository"
	pg "chatbot-commerce/internal/infra/db/postgres"
	"chatbot-commerce/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	botToken := flag.String("bot-token", "", "Telegram bot token for the demo tenant")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	tenantRepo := pg.NewTenantRepo(pool)
	productRepo := pg.NewProductRepo(pool)

	if t, err := tenantRepo.FindBySubdomain(ctx, repository.NoTX, "demo"); err == nil {
		fmt.Printf("demo tenant already present (id=%s). No changes.\n", t.ID)
		return
	} else if err != domain.ErrNotFound {
		log.Fatalf("find demo tenant: %v", err)
	}

	codesProduct := &model.Product{
		ID:              uuid.NewString(),
		Name:            "Curso Completo",
		Price:           9_900,
		Type:            model.ProductTypeProduct,
		Subtype:         model.SubtypeActivationCodes,
		Description:     "Acesso ao curso com código de ativação.",
		ActivationCodes: []string{"DEMO-0001", "DEMO-0002", "DEMO-0003"},
	}
	subProduct := &model.Product{
		ID:           uuid.NewString(),
		Name:         "Clube VIP",
		Price:        19_900,
		Type:         model.ProductTypeSubscription,
		Subtype:      model.SubtypeStandard,
		Description:  "Assinatura mensal do grupo VIP.",
		DurationDays: 30,
	}

	flowModel := &model.FlowModel{Flows: []model.Flow{{
		ID:             "main",
		TriggerCommand: "/start",
		StartStepID:    "welcome",
		Steps: []model.Step{
			{
				ID:              "welcome",
				Name:            "Boas-vindas",
				MessageTemplate: "Olá, {firstName}! O que você procura hoje?",
				Buttons: []model.Button{
					{ID: "b1", Text: "📚 Curso", Action: model.Action{Type: model.ActionGoToStep, Payload: "course"}},
					{ID: "b2", Text: "⭐ Clube VIP", Action: model.Action{Type: model.ActionLinkToProduct, Payload: subProduct.ID}},
					{ID: "b3", Text: "👤 Meu perfil", Action: model.Action{Type: model.ActionShowProfile}},
				},
			},
			{
				ID:              "course",
				Name:            "Curso",
				MessageTemplate: "O curso completo sai por um preço especial. Quer garantir sua vaga?",
				Buttons: []model.Button{
					{ID: "b1", Text: "Comprar agora", Action: model.Action{Type: model.ActionLinkToProduct, Payload: codesProduct.ID}},
					{ID: "b2", Text: "Voltar", Action: model.Action{Type: model.ActionMainMenu}},
				},
			},
		},
	}}}
	if err := flowModel.Validate(); err != nil {
		log.Fatalf("seed flow model: %v", err)
	}

	tenant := &model.Tenant{
		ID:        uuid.NewString(),
		Subdomain: "demo",
		Status:    model.TenantStatusTrialing,
		Credentials: model.TransportCredentials{
			BotToken: *botToken,
		},
		Gateways: map[string]model.GatewayCredentials{
			"mercadopago": {Sandbox: true},
		},
		FlowModel: flowModel,
	}

	if err := tenantRepo.Save(ctx, repository.NoTX, tenant); err != nil {
		log.Fatalf("save tenant: %v", err)
	}
	for _, p := range []*model.Product{codesProduct, subProduct} {
		p.TenantID = tenant.ID
		if err := productRepo.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("save product %q: %v", p.Name, err)
		}
		fmt.Printf("seeded product: %s (id=%s)\n", p.Name, p.ID)
	}

	fmt.Printf("seeded demo tenant (id=%s, subdomain=demo, bot_token=%s)\n", tenant.ID, logging.Redact(*botToken, false))
}
