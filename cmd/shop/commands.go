package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"

	"storefront/internal/appstate"
	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/client"
	"storefront/internal/domain"
	"storefront/internal/session"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

type shop struct {
	state  *appstate.State
	api    *client.Client
	logger *zap.Logger
	out    io.Writer
	in     io.Reader
	reader *bufio.Reader
}

func (s *shop) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return s.register(ctx)
	case "login":
		return s.login(ctx, args)
	case "logout":
		return s.logout(ctx)
	case "whoami":
		return s.whoami()
	case "profile":
		return s.profile(ctx, args)
	case "forgot-password":
		return s.forgotPassword(ctx)
	case "categories":
		return s.categories(ctx)
	case "products":
		return s.products(ctx, args)
	case "show":
		return s.show(ctx, args)
	case "search":
		return s.search(ctx, args)
	case "add":
		return s.add(ctx, args)
	case "remove":
		return s.remove(args)
	case "cart":
		return s.showCart()
	case "checkout":
		return s.checkout(ctx, args)
	case "orders":
		return s.orders(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (s *shop) prompt(label string) (string, error) {
	if s.reader == nil {
		s.reader = bufio.NewReader(s.in)
	}
	fmt.Fprintf(s.out, "%s: ", label)
	line, err := s.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// authed runs call and, if the access token was rejected, refreshes it once
// and runs call again
func (s *shop) authed(ctx context.Context, call func() error) error {
	if !s.state.Session.Authenticated() {
		return session.ErrNotSignedIn
	}

	err := call()
	if !client.IsStatus(err, http.StatusUnauthorized) || s.state.Session.RefreshToken() == "" {
		return err
	}

	token, refreshErr := s.api.Refresh(ctx, s.state.Session.RefreshToken())
	if refreshErr != nil {
		s.logger.Debug("Token refresh failed", zap.Error(refreshErr))
		return err
	}
	if err := s.state.Session.UpdateToken(token); err != nil {
		return err
	}
	return call()
}

func (s *shop) register(ctx context.Context) error {
	var req client.RegisterRequest
	fields := []struct {
		label string
		dst   *string
	}{
		{"Name", &req.Name},
		{"Email", &req.Email},
		{"Password", &req.Password},
		{"Phone", &req.Phone},
		{"Address", &req.Address},
		{"Security answer (favourite sport)", &req.Answer},
	}
	for _, f := range fields {
		v, err := s.prompt(f.label)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	user, err := s.api.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Registered %s. Sign in with: shop login %s <password>\n", user.Name, user.Email)
	return nil
}

func (s *shop) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: shop login <email> <password>")
	}

	resp, err := s.api.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if err := s.state.Session.SignIn(session.Payload{User: resp.User, Token: resp.Token, RefreshToken: resp.RefreshToken}); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Signed in as %s\n", resp.User.Name)
	return nil
}

func (s *shop) logout(ctx context.Context) error {
	if refresh := s.state.Session.RefreshToken(); refresh != "" {
		if err := s.api.Logout(ctx, refresh); err != nil {
			s.logger.Warn("Failed to revoke refresh token", zap.Error(err))
		}
	}
	if err := s.state.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Signed out")
	return nil
}

func (s *shop) whoami() error {
	user := s.state.Session.User()
	if user == nil {
		return session.ErrNotSignedIn
	}
	fmt.Fprintf(s.out, "%s <%s>\nrole:    %s\nphone:   %s\naddress: %s\n", user.Name, user.Email, user.Role, user.Phone, user.Address)
	return nil
}

func (s *shop) profile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	name := fs.String("name", "", "new display name")
	phone := fs.String("phone", "", "new phone number")
	address := fs.String("address", "", "new delivery address")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var update client.ProfileUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			update.Name = name
		case "phone":
			update.Phone = phone
		case "address":
			update.Address = address
		case "password":
			update.Password = password
		}
	})

	var user *domain.User
	err := s.authed(ctx, func() error {
		var err error
		user, err = s.api.UpdateProfile(ctx, update)
		return err
	})
	if err != nil {
		return err
	}
	if err := s.state.Session.UpdateUser(user); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Profile updated")
	return nil
}

func (s *shop) forgotPassword(ctx context.Context) error {
	email, err := s.prompt("Email")
	if err != nil {
		return err
	}
	answer, err := s.prompt("Security answer")
	if err != nil {
		return err
	}
	password, err := s.prompt("New password")
	if err != nil {
		return err
	}

	if err := s.api.ForgotPassword(ctx, email, answer, password); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Password reset. Sign in again on every device.")
	return nil
}

func (s *shop) categories(ctx context.Context) error {
	categories, err := s.api.Categories(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSLUG")
	for _, c := range categories {
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Slug)
	}
	return tw.Flush()
}

func (s *shop) printProducts(products []*domain.Product) error {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tNAME\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.Slug, p.Name, cart.FormatUSD(p.Price), p.Quantity)
	}
	return tw.Flush()
}

func (s *shop) products(ctx context.Context, args []string) error {
	page := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid page %q", args[0])
		}
		page = n
	}

	products, err := s.api.ProductPage(ctx, page)
	if err != nil {
		return err
	}
	total, err := s.api.ProductCount(ctx)
	if err != nil {
		return err
	}

	if err := s.printProducts(products); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "\npage %d, %d products in total\n", page, total)
	return nil
}

func (s *shop) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: shop show <slug>")
	}

	p, err := s.api.Product(ctx, args[0])
	if err != nil {
		return err
	}

	category := ""
	if p.Category != nil {
		category = p.Category.Name
	}
	fmt.Fprintf(s.out, "%s\n%s\n\nprice:    %s\ncategory: %s\nstock:    %d\nid:       %s\n",
		p.Name, p.Description, cart.FormatUSD(p.Price), category, p.Quantity, p.ID)

	related, err := s.api.Related(ctx, p.ID, p.CategoryID)
	if err != nil {
		s.logger.Debug("Failed to load related products", zap.Error(err))
		return nil
	}
	if len(related) > 0 {
		fmt.Fprintln(s.out, "\nSimilar products:")
		return s.printProducts(related)
	}
	return nil
}

func (s *shop) search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: shop search <keyword>")
	}

	products, err := s.api.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	return s.printProducts(products)
}

func (s *shop) add(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: shop add <slug>")
	}

	p, err := s.api.Product(ctx, args[0])
	if err != nil {
		return err
	}
	if err := s.state.Cart.Add(p.Snapshot()); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Added %s. Cart: %d items, %s\n", p.Name, s.state.Cart.Len(), s.state.Cart.TotalPrice())
	return nil
}

func (s *shop) remove(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: shop remove <product-id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid product id %q", args[0])
	}

	removed, err := s.state.Cart.Remove(id)
	if err != nil {
		return err
	}
	if !removed {
		return errors.New("product is not in the cart")
	}
	fmt.Fprintf(s.out, "Removed. Cart: %d items, %s\n", s.state.Cart.Len(), s.state.Cart.TotalPrice())
	return nil
}

func (s *shop) showCart() error {
	items := s.state.Cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(s.out, "Your cart is empty")
		return nil
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", item.ID, item.Name, cart.FormatUSD(item.Price))
	}
	fmt.Fprintf(tw, "\tTotal\t%s\n", s.state.Cart.TotalPrice())
	return tw.Flush()
}

func (s *shop) checkout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	nonce := fs.String("nonce", "", "payment method nonce; prompted for when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m := checkout.New(s.api, &terminalWidget{shop: s, nonce: *nonce}, s.state, s.logger)
	m.SetObserver(func(from, to checkout.State) {
		s.logger.Debug("Checkout", zap.Stringer("from", from), zap.Stringer("to", to))
	})

	err := s.authed(ctx, func() error { return m.RequestToken(ctx) })
	if err != nil {
		return err
	}
	if err := m.InitWidget(ctx); err != nil {
		return err
	}

	order, err := m.Pay(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Paid %s. Order %s is %s.\n", cart.FormatUSD(order.Amount), order.ID, order.Status)
	return nil
}

func (s *shop) orders(ctx context.Context) error {
	var orders []*domain.Order
	err := s.authed(ctx, func() error {
		var err error
		orders, err = s.api.Orders(ctx)
		return err
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tDATE\tSTATUS\tITEMS\tAMOUNT\tPAYMENT")
	for _, o := range orders {
		payment := "failed"
		if o.Payment.Success {
			payment = "paid"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			o.ID, o.CreatedAt.Format("2006-01-02"), o.Status, len(o.Products), cart.FormatUSD(o.Amount), payment)
	}
	return tw.Flush()
}
