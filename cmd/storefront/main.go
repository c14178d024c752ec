package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ququlondon/storefront/internal/admin"
	"github.com/ququlondon/storefront/internal/api"
	"github.com/ququlondon/storefront/internal/cart"
	"github.com/ququlondon/storefront/internal/catalog"
	"github.com/ququlondon/storefront/internal/config"
	"github.com/ququlondon/storefront/internal/domain"
	"github.com/ququlondon/storefront/internal/notify"
	"github.com/ququlondon/storefront/internal/orders"
	"github.com/ququlondon/storefront/internal/payment"
	"github.com/ququlondon/storefront/internal/session"
	"github.com/ququlondon/storefront/internal/storage"
	"github.com/ququlondon/storefront/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "storefront", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metricsHandler)
			server := &http.Server{
				Addr:         cfg.MetricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	var store storage.Store
	if cfg.RedisURL != "" {
		redisStore, err := storage.NewRedisStore(cfg.RedisURL, "storefront")
		if err != nil {
			logger.Error("failed to connect storage", "error", err)
			os.Exit(1)
		}
		defer func() { _ = redisStore.Close() }()
		store = redisStore
	} else {
		fileStore, err := storage.NewFileStore(cfg.StorageDir)
		if err != nil {
			logger.Error("failed to open storage", "error", err)
			os.Exit(1)
		}
		store = fileStore
	}

	client := api.NewClient(cfg.APIBaseURL, api.StorageTokenSource{Store: store}, logger)
	nav := &terminalNavigator{path: "/"}

	toasts := notify.NewDebouncer(terminalNotifier{}, 300*time.Millisecond)

	sessions := session.NewStore(client, store, nav, logger)
	carts := cart.NewStore(store, toasts, logger)
	gateway := orders.NewGateway(client, logger)
	checkout := payment.NewCheckout(carts, logger)
	products := catalog.NewClient(client, logger)
	dashboard := admin.NewClient(client, logger)

	wallet := payment.NewWalletAdapter(
		payment.NewHTTPProvider(cfg.Wallet.BaseURL, cfg.Wallet.ClientID, logger),
		gateway, cfg.Wallet.BrandName, logger,
	)
	card := payment.NewCardAdapter(client, logger)

	app := &cli{
		nav:      nav,
		sessions: sessions,
		carts:    carts,
		gateway:  gateway,
		checkout: checkout,
		products: products,
		admin:    dashboard,
		wallet:   wallet,
		card:     card,
	}

	// Restore any persisted session before dispatching; a bad token ends
	// logged out rather than failing the first authenticated call.
	sessions.Reconcile(ctx)

	err = app.run(ctx, flag.Args())
	toasts.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cli struct {
	nav      *terminalNavigator
	sessions *session.Store
	carts    *cart.Store
	gateway  *orders.Gateway
	checkout *payment.Checkout
	products *catalog.Client
	admin    *admin.Client
	wallet   *payment.WalletAdapter
	card     *payment.CardAdapter
}

func (c *cli) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return c.login(ctx, rest)
	case "register":
		return c.register(ctx, rest)
	case "logout":
		c.sessions.Logout(ctx)
		fmt.Println("Logged out")
		return nil
	case "whoami":
		return c.whoami()
	case "products":
		return c.listProducts(ctx)
	case "add-product":
		return c.addProduct(ctx, rest)
	case "cart":
		return c.cartCmd(ctx, rest)
	case "checkout":
		return c.checkoutCmd(ctx, rest)
	case "orders":
		return c.listOrders(ctx)
	case "order":
		return c.showOrder(ctx, rest)
	case "stats":
		return c.stats(ctx)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: storefront login <email> <password>")
	}
	c.nav.path = "/login"
	if err := c.sessions.Login(ctx, args[0], args[1]); err != nil {
		return err
	}
	if path, ok := c.sessions.ReturnPath(ctx); ok {
		c.nav.Navigate(path)
	}
	fmt.Printf("Logged in as %s\n", c.sessions.User().Email)
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: storefront register <name> <email> <password>")
	}
	err := c.sessions.Register(ctx, session.Registration{
		Name:     args[0],
		Email:    args[1],
		Password: args[2],
	})
	if err != nil {
		return err
	}
	fmt.Printf("Registered as %s\n", c.sessions.User().Email)
	return nil
}

func (c *cli) whoami() error {
	user := c.sessions.User()
	if user == nil {
		fmt.Println("Not logged in")
		return nil
	}
	role := "customer"
	if user.IsAdmin {
		role = "admin"
	}
	fmt.Printf("%s <%s> (%s)\n", user.Name, user.Email, role)
	return nil
}

func (c *cli) listProducts(ctx context.Context) error {
	c.nav.path = "/shop"
	products, err := c.products.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		fmt.Printf("%s  £%.2f  %s (stock %d)\n", p.ID, p.Price, p.Name, p.Stock)
	}
	return nil
}

func (c *cli) addProduct(ctx context.Context, args []string) error {
	c.nav.path = "/admin/products"
	fs := flag.NewFlagSet("add-product", flag.ContinueOnError)
	name := fs.String("name", "", "product name")
	desc := fs.String("description", "", "product description")
	price := fs.Float64("price", 0, "price in GBP")
	stock := fs.Int("stock", 0, "stock count")
	category := fs.String("category", "mens", "product category")
	image := fs.String("image", "", "path to product image")
	if err := fs.Parse(args); err != nil {
		return err
	}

	file, err := os.Open(*image)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = file.Close() }()

	created, err := c.products.Create(ctx, catalog.NewProduct{
		Name:        *name,
		Description: *desc,
		Price:       *price,
		Stock:       *stock,
		Category:    *category,
		ImageName:   *image,
		Image:       file,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created product %s (%s)\n", created.Name, created.ID)
	return nil
}

func (c *cli) cartCmd(ctx context.Context, args []string) error {
	c.nav.path = "/cart"
	if len(args) == 0 {
		args = []string{"show"}
	}
	switch args[0] {
	case "show":
		for _, item := range c.carts.Items() {
			fmt.Printf("%s  x%d  £%.2f  %s\n", item.ProductID, item.Quantity, item.Price, item.Name)
		}
		fmt.Printf("%d items, total £%.2f\n", c.carts.ItemCount(), c.carts.TotalPrice())
		return nil
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: storefront cart add <product-id> [quantity]")
		}
		quantity := 1
		if len(args) > 2 {
			q, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[2])
			}
			quantity = q
		}
		product, err := c.findProduct(ctx, args[1])
		if err != nil {
			return err
		}
		c.carts.AddItem(*product, quantity)
		return nil
	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: storefront cart remove <product-id>")
		}
		c.carts.RemoveItem(args[1])
		return nil
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: storefront cart set <product-id> <quantity>")
		}
		quantity, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[2])
		}
		c.carts.SetQuantity(args[1], quantity)
		return nil
	case "clear":
		c.carts.Clear()
		return nil
	default:
		return fmt.Errorf("unknown cart command %q", args[0])
	}
}

func (c *cli) findProduct(ctx context.Context, productID string) (*domain.Product, error) {
	products, err := c.products.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.ID == productID {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("no product with id %q", productID)
}

func (c *cli) checkoutCmd(ctx context.Context, args []string) error {
	c.nav.path = "/checkout"
	if len(args) == 0 {
		return fmt.Errorf("usage: storefront checkout <wallet|card> [flags]")
	}
	method, rest := args[0], args[1:]

	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	addr := domain.ShippingAddress{}
	fs.StringVar(&addr.Name, "name", "", "recipient name")
	fs.StringVar(&addr.Email, "email", "", "contact email")
	fs.StringVar(&addr.Phone, "phone", "", "contact phone")
	fs.StringVar(&addr.Street, "street", "", "street address")
	fs.StringVar(&addr.City, "city", "", "city")
	fs.StringVar(&addr.County, "county", "", "county")
	fs.StringVar(&addr.Postcode, "postcode", "", "UK postcode")

	var cardDetails payment.CardDetails
	if method == "card" {
		fs.StringVar(&cardDetails.Number, "card-number", "", "card number")
		fs.StringVar(&cardDetails.Expiry, "card-expiry", "", "card expiry MM/YY")
		fs.StringVar(&cardDetails.CVV, "card-cvv", "", "card CVV")
		fs.StringVar(&cardDetails.HolderName, "card-name", "", "cardholder name")
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}

	var (
		order *domain.Order
		err   error
	)
	switch method {
	case "wallet":
		order, err = c.checkout.Pay(ctx, c.wallet, addr, nil)
	case "card":
		order, err = c.checkout.Pay(ctx, c.card, addr, &cardDetails)
	default:
		return fmt.Errorf("unknown payment method %q", method)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Order placed: %s (£%.2f)\n", order.ID, order.TotalAmount)
	c.nav.Navigate("/orders")
	return nil
}

func (c *cli) listOrders(ctx context.Context) error {
	c.nav.path = "/orders"
	list, err := c.gateway.ListMine(ctx)
	if err != nil {
		return err
	}
	for _, o := range list {
		fmt.Printf("%s  £%.2f  %s  %s\n", o.ID, o.TotalAmount, o.OrderStatus, o.CreatedAt.Format(time.DateOnly))
	}
	return nil
}

func (c *cli) showOrder(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: storefront order <order-id>")
	}
	c.nav.path = "/orders/" + args[0]
	order, err := c.gateway.GetByID(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Order %s (%s, payment %s via %s)\n", order.ID, order.OrderStatus, order.PaymentStatus, order.PaymentMethod)
	for _, item := range order.Items {
		fmt.Printf("  %s x%d £%.2f\n", item.Name, item.Quantity, item.Price)
	}
	fmt.Printf("  Total £%.2f\n", order.TotalAmount)
	return nil
}

func (c *cli) stats(ctx context.Context) error {
	c.nav.path = "/admin"
	dash, err := c.admin.Dashboard(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Orders: %d  Revenue: £%.2f  Products: %d  Users: %d\n",
		dash.Stats.TotalOrders, dash.Stats.TotalRevenue, dash.Stats.TotalProducts, dash.Stats.TotalUsers)
	for _, o := range dash.RecentOrders {
		fmt.Printf("  %s  £%.2f  %s\n", o.ID, o.TotalAmount, o.OrderStatus)
	}
	return nil
}

// terminalNavigator tracks the current surface path so session redirects
// can distinguish admin from storefront, and prints where they land.
type terminalNavigator struct {
	path string
}

func (n *terminalNavigator) Navigate(path string) {
	n.path = path
	fmt.Printf("Redirected to %s\n", path)
}

func (n *terminalNavigator) CurrentPath() string {
	return n.path
}

// terminalNotifier is the CLI's toast: one line per message.
type terminalNotifier struct{}

func (terminalNotifier) Notify(message string) {
	fmt.Println(message)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: storefront [-config path] <command>

commands:
  login <email> <password>
  register <name> <email> <password>
  logout
  whoami
  products
  add-product -name ... -description ... -price ... -stock ... -category ... -image ...
  cart [show|add|remove|set|clear] ...
  checkout <wallet|card> -name ... -email ... -phone ... -street ... -city ... -county ... -postcode ...
  orders
  order <order-id>
  stats`)
}
